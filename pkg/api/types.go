package api

import (
	"encoding/json"
	"time"
)

// Request is one host-protocol frame: an action tag, an optional payload,
// optional per-action options, and a caller-supplied correlation id echoed
// back on the response.
type Request struct {
	Action     string          `json:"action"`
	PageData   json.RawMessage `json:"pageData,omitempty"`
	Options    json.RawMessage `json:"options,omitempty"`
	CallbackID string          `json:"callbackId"`
}

// Response carries the matching callbackId and a nullable result.
type Response struct {
	CallbackID string      `json:"callbackId"`
	Result     interface{} `json:"result"`
}

// PageData is the payload for place-addressed actions. Pointer fields
// distinguish "absent" from zero values on partial updates.
type PageData struct {
	URL           string            `json:"url"`
	Title         *string           `json:"title,omitempty"`
	VisitCount    *int              `json:"visitCount,omitempty"`
	LastVisit     *int64            `json:"lastVisit,omitempty"`
	IsBookmarked  *bool             `json:"isBookmarked,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Color         *string           `json:"color,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	ExtractedText *string           `json:"extractedText,omitempty"`

	// Text carries the query for search actions.
	Text string `json:"text,omitempty"`
}

// RequestOptions covers every per-action option across the protocol;
// actions read only the fields they recognize.
type RequestOptions struct {
	IsNewVisit      bool `json:"isNewVisit,omitempty"`
	SearchBookmarks bool `json:"searchBookmarks,omitempty"`
	Limit           int  `json:"limit,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
