package task

import (
	"time"

	"gorm.io/datatypes"
)

type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"

	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// ReconcileRun is one execution of the ledger reconcile task.
type ReconcileRun struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	Trigger     string         `gorm:"column:trigger_source;type:varchar(20);not null" json:"trigger"`
	Status      RunStatus      `gorm:"column:status;type:varchar(20);not null;default:'pending';index" json:"status"`
	Checked     int            `gorm:"column:checked;not null;default:0" json:"checked"`
	Mismatches  int            `gorm:"column:mismatches;not null;default:0" json:"mismatches"`
	Report      datatypes.JSON `gorm:"column:report" json:"report,omitempty"`
	ErrorMsg    string         `gorm:"column:error_msg;type:text" json:"error,omitempty"`
	StartedAt   *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

type reconcilePayload struct {
	RunID int64 `json:"run_id,string"`
}
