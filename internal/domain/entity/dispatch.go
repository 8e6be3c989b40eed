// internal/domain/entity/dispatch.go
package entity

import (
	"time"
)

// AlertDispatch records one notification batch for auditing
type AlertDispatch struct {
	ID         string    `bson:"_id,omitempty"`
	RunID      string    `bson:"runId"` // unique index
	Title      string    `bson:"title"`
	Message    string    `bson:"message"`
	AlertCount int       `bson:"alertCount"`
	Success    bool      `bson:"success"`
	Error      string    `bson:"error,omitempty"`
	SentAt     time.Time `bson:"sentAt"`
}

// RunReport summarises one orchestration pass
type RunReport struct {
	RunID            string    `json:"runId"`
	StartedAt        time.Time `json:"startedAt"`
	FinishedAt       time.Time `json:"finishedAt"`
	PairsAttempted   int       `json:"pairsAttempted"`
	PairsWithoutData int       `json:"pairsWithoutData"`
	Candidates       int       `json:"candidates"`
	New              int       `json:"new"`
	Changed          int       `json:"changed"`
	Unchanged        int       `json:"unchanged"`
	StoreErrors      int       `json:"storeErrors"`
	AlertsQueued     int       `json:"alertsQueued"`
	NotificationSent bool      `json:"notificationSent"`
}

// Count tallies one upsert result
func (r *RunReport) Count(result UpsertResult) {
	switch result {
	case UpsertNew:
		r.New++
	case UpsertChanged:
		r.Changed++
	case UpsertUnchanged:
		r.Unchanged++
	}
}
