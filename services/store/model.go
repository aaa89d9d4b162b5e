package store

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type AccountStatus string
type Role string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"

	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

// Account is a registered sender. CreditBalance is a cache of the sum of the
// account's credit_logs and only moves in the same transaction as a new entry.
type Account struct {
	ID               int64           `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	Name             string          `gorm:"column:name;type:varchar(255)" json:"name"`
	Email            string          `gorm:"column:email;type:varchar(191);uniqueIndex" json:"email"`
	Role             Role            `gorm:"column:role;type:varchar(20);not null;default:'user'" json:"role"`
	Status           AccountStatus   `gorm:"column:status;type:varchar(20);not null;default:'active'" json:"status"`
	Country          *string         `gorm:"column:country;type:varchar(8)" json:"country,omitempty"`
	CreditBalance    decimal.Decimal `gorm:"column:credit_balance;type:decimal(18,2);not null;default:0" json:"credit_balance"`
	HourlyLimit      int             `gorm:"column:hourly_limit;not null;default:10" json:"hourly_limit"`
	DailyLimit       int             `gorm:"column:daily_limit;not null;default:100" json:"daily_limit"`
	CooldownUntil    *time.Time      `gorm:"column:cooldown_until" json:"cooldown_until,omitempty"`
	LastJobAt        *time.Time      `gorm:"column:last_job_at" json:"last_job_at,omitempty"`
	ReferredBy       *int64          `gorm:"column:referred_by;index" json:"referred_by,omitempty,string"`
	ReferralPercent  decimal.Decimal `gorm:"column:referral_percent;type:decimal(5,2);not null;default:105" json:"referral_percent"`
	ChannelConnected bool            `gorm:"column:channel_connected;not null;default:false" json:"channel_connected"`
	SessionID        string          `gorm:"column:session_id;type:varchar(100)" json:"session_id,omitempty"`
	PhoneNumber      string          `gorm:"column:phone_number;type:varchar(32)" json:"phone_number,omitempty"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string { return "users" }

func (a *Account) IsActive() bool { return a.Status == AccountStatusActive }

type Referral struct {
	ID               int64           `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	ReferrerID       int64           `gorm:"column:referrer_id;not null;uniqueIndex:uq_referrals_pair" json:"referrer_id,string"`
	ReferredUserID   int64           `gorm:"column:referred_user_id;not null;uniqueIndex:uq_referrals_pair" json:"referred_user_id,string"`
	TotalBonusEarned decimal.Decimal `gorm:"column:total_bonus_earned;type:decimal(18,2);not null;default:0" json:"total_bonus_earned"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

type Campaign struct {
	ID                int64           `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	Name              string          `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Description       string          `gorm:"column:description;type:text" json:"description,omitempty"`
	RewardPerJob      decimal.Decimal `gorm:"column:reward_per_job;type:decimal(18,2);not null;default:0" json:"reward_per_job"`
	CooldownSeconds   int             `gorm:"column:cooldown_seconds;not null;default:30" json:"cooldown_seconds"`
	DailyLimitPerUser int             `gorm:"column:daily_limit_per_user;not null;default:50" json:"daily_limit_per_user"`
	CountryTarget     *string         `gorm:"column:country_target;type:varchar(8)" json:"country_target,omitempty"`
	TargetTotal       int             `gorm:"column:target_total;not null;default:0" json:"target_total"`
	TargetAssigned    int             `gorm:"column:target_assigned;not null;default:0" json:"target_assigned"`
	TargetDelivered   int             `gorm:"column:target_delivered;not null;default:0" json:"target_delivered"`
	Status            CampaignStatus  `gorm:"column:status;type:varchar(20);not null;default:'draft';index" json:"status"`
	CreatedBy         *int64          `gorm:"column:created_by" json:"created_by,omitempty,string"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Targets []Target `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"-"`
}

// TargetStatus only moves forward:
// pending -> assigned -> sent -> delivered, with failed reachable from
// assigned or sent.
type TargetStatus int8

const (
	TargetPending TargetStatus = iota
	TargetAssigned
	TargetSent
	TargetDelivered
	TargetFailed
)

func (s TargetStatus) String() string {
	switch s {
	case TargetPending:
		return "pending"
	case TargetAssigned:
		return "assigned"
	case TargetSent:
		return "sent"
	case TargetDelivered:
		return "delivered"
	case TargetFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Target struct {
	ID               int64        `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	CampaignID       int64        `gorm:"column:campaign_id;not null;index:idx_targets_campaign_status,priority:1" json:"campaign_id,string"`
	Phone            string       `gorm:"column:phone;type:varchar(32);not null" json:"phone"`
	Name             string       `gorm:"column:name;type:varchar(255)" json:"name,omitempty"`
	Status           TargetStatus `gorm:"column:status;not null;default:0;index:idx_targets_campaign_status,priority:2" json:"status"`
	AssignedToUserID *int64       `gorm:"column:assigned_to_user_id;index" json:"assigned_to_user_id,omitempty,string"`
	MessageID        string       `gorm:"column:message_id;type:varchar(128);index" json:"message_id,omitempty"`
	RetryCount       int          `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	AssignedAt       *time.Time   `gorm:"column:assigned_at" json:"assigned_at,omitempty"`
	SentAt           *time.Time   `gorm:"column:sent_at" json:"sent_at,omitempty"`
	DeliveredAt      *time.Time   `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	FailedAt         *time.Time   `gorm:"column:failed_at" json:"failed_at,omitempty"`
	CreatedAt        time.Time    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Target) TableName() string { return "campaign_targets" }

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeButton MessageType = "button"
)

type MessageTemplate struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	Name        string         `gorm:"column:name;type:varchar(255);not null" json:"name"`
	MessageType MessageType    `gorm:"column:message_type;type:varchar(20);not null;default:'text'" json:"message_type"`
	Header      string         `gorm:"column:header;type:varchar(255)" json:"header,omitempty"`
	Body        string         `gorm:"column:body;type:text;not null" json:"body"`
	Footer      string         `gorm:"column:footer;type:varchar(255)" json:"footer,omitempty"`
	ButtonJSON  datatypes.JSON `gorm:"column:button_json" json:"button_json,omitempty"`
	ImageURL    string         `gorm:"column:image_url;type:varchar(512)" json:"image_url,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// CampaignTemplate links a campaign to the templates it may send.
type CampaignTemplate struct {
	CampaignID int64 `gorm:"column:campaign_id;primaryKey;autoIncrement:false"`
	TemplateID int64 `gorm:"column:template_id;primaryKey;autoIncrement:false"`
}

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusSent      JobStatus = "sent"
	JobStatusDelivered JobStatus = "delivered"
	JobStatusFailed    JobStatus = "failed"
)

// Job is one assignment of one target to one account. RewardAmount is the
// campaign reward at assignment time; later campaign edits do not change it.
type Job struct {
	ID               int64           `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	UserID           int64           `gorm:"column:user_id;not null;index:idx_jobs_user_created,priority:1" json:"user_id,string"`
	CampaignID       int64           `gorm:"column:campaign_id;not null;index" json:"campaign_id,string"`
	CampaignTargetID int64           `gorm:"column:campaign_target_id;not null;uniqueIndex" json:"campaign_target_id,string"`
	Status           JobStatus       `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status"`
	MessageID        string          `gorm:"column:message_id;type:varchar(128);index" json:"message_id,omitempty"`
	RewardAmount     decimal.Decimal `gorm:"column:reward_amount;type:decimal(18,2);not null;default:0" json:"reward_amount"`
	SentAt           *time.Time      `gorm:"column:sent_at" json:"sent_at,omitempty"`
	DeliveredAt      *time.Time      `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime;index:idx_jobs_user_created,priority:2" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

type CreditType string

const (
	CreditTypeJobReward     CreditType = "job_reward"
	CreditTypeReferralBonus CreditType = "referral_bonus"
	CreditTypeManualAdjust  CreditType = "manual_adjust"
)

// CreditLog is append-only.
type CreditLog struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	UserID      int64           `gorm:"column:user_id;not null;index" json:"user_id,string"`
	Type        CreditType      `gorm:"column:type;type:varchar(20);not null" json:"type"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	ReferenceID *int64          `gorm:"column:reference_id;index" json:"reference_id,omitempty,string"`
	Description string          `gorm:"column:description;type:varchar(255)" json:"description,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

type WebhookLog struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	Source    string         `gorm:"column:source;type:varchar(32);not null" json:"source"`
	EventType string         `gorm:"column:event_type;type:varchar(64)" json:"event_type,omitempty"`
	Payload   datatypes.JSON `gorm:"column:payload" json:"payload"`
	Processed bool           `gorm:"column:processed;not null;default:false" json:"processed"`
	Error     string         `gorm:"column:error;type:text" json:"error,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func Models() []any {
	return []any{
		&Account{},
		&Referral{},
		&Campaign{},
		&Target{},
		&MessageTemplate{},
		&CampaignTemplate{},
		&Job{},
		&CreditLog{},
		&WebhookLog{},
	}
}
