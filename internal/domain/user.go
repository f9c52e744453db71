package domain

import "context"

// Identity is an authenticated portal user as seen by chat peers.
type Identity struct {
	ID        string `json:"id" bson:"_id"`
	Fullname  string `json:"fullname" bson:"fullname"`
	AvatarURL string `json:"avatarUrl,omitempty" bson:"avatarUrl,omitempty"`
	Email     string `json:"email,omitempty" bson:"email,omitempty"`
}

type IdentityVerifier interface {
	// Verify returns ErrInvalidCredential for a rejected credential.
	Verify(ctx context.Context, credential string) (*Identity, error)
}

type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*Identity, error)
}
