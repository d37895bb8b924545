package models

import "time"

// PathwayStatus is the Firestore record tracking one document's progress
// through the pipeline. It exists for operator visibility only; resumability
// is decided by the pathway store, never by this record.
type PathwayStatus struct {
	PathwayName  string    `firestore:"pathwayName,omitempty"`
	Stage        string    `firestore:"stage,omitempty"`
	Status       string    `firestore:"status,omitempty"`
	ErrorDetails string    `firestore:"errorDetails,omitempty"`
	PageCount    int       `firestore:"pageCount,omitempty"`
	UpdatedAt    time.Time `firestore:"updatedAt,omitempty"`
}
