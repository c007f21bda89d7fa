package postgresadapter

import (
	"context"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// UUIDGenerator issues run ids.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// ULIDGenerator issues prompt ids; they sort by creation time, which keeps
// prompt listings stable when two records share a timestamp.
type ULIDGenerator struct{}

func (ULIDGenerator) NewID(_ context.Context) (string, error) {
	return ulid.Make().String(), nil
}
