package docstore

import (
	"encoding/json"
	"time"

	"github.com/five82/cubespace/internal/cube"
)

// Collection names accepted by the feed endpoint.
const (
	CollectionCubes  = "cubes"
	CollectionOwners = "owners"
)

// TokenResponse is returned by POST /api/auth/anonymous.
type TokenResponse struct {
	Token string `json:"token"`
}

// Profile is the identity returned by POST /api/auth/identity. The store
// answers 204 when no identity provider is configured.
type Profile struct {
	Name       string `json:"name"`
	ProfileURL string `json:"profileUrl,omitempty"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
}

// OwnerInput is the body of POST /api/owners.
type OwnerInput struct {
	Name       string `json:"name"`
	ProfileURL string `json:"profileUrl,omitempty"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
}

// OwnerCreated is the response of POST /api/owners.
type OwnerCreated struct {
	OwnerID string `json:"ownerId"`
}

// CubeInput is the body of POST /api/cubes.
type CubeInput struct {
	OwnerID       string     `json:"ownerId"`
	Color         string     `json:"color"`
	DropPosition  cube.Vec3  `json:"dropPosition"`
	FinalPosition cube.Vec3  `json:"finalPosition"`
	FinalRotation *cube.Quat `json:"finalRotation,omitempty"`
}

// CubeCreated is the response of POST /api/cubes.
type CubeCreated struct {
	RemoteID string `json:"remoteId"`
}

// ListResponse wraps the collection GET endpoints.
type ListResponse[T any] struct {
	Items []T `json:"items"`
}

// FeedMessage is one frame on the feed websocket. Each frame carries the
// complete collection.
type FeedMessage struct {
	Type       string          `json:"type"`
	Collection string          `json:"collection"`
	Seq        uint64          `json:"seq"`
	Records    json.RawMessage `json:"records"`
}

// ErrorResponse is the JSON body the store writes for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Meta describes where a delivered snapshot came from.
type Meta struct {
	Source     string // "websocket" or "poll"
	Seq        uint64
	ReceivedAt time.Time
}
