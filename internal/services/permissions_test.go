package services

import (
	"context"
	"errors"
	"testing"

	"presence-gateway/internal/domain"
	"presence-gateway/pkg/logger"
)

type fakeAccessRepo struct {
	access   domain.EntityAccess
	err      error
	entities []string
}

func (r *fakeAccessRepo) GetAccess(ctx context.Context, userID, entityName string) (domain.EntityAccess, error) {
	r.entities = append(r.entities, entityName)
	if r.err != nil {
		return domain.EntityAccess{}, r.err
	}
	return r.access, nil
}

func TestDisabledGateAllowsEverything(t *testing.T) {
	gate := NewPermissionGate(nil, false, logger.NewNop())

	access := gate.Check(context.Background(), "user-1", "/event/record_open")
	if !access.Readable || !access.Creatable {
		t.Errorf("Disabled gate denied access: %+v", access)
	}
}

func TestEnabledGateQueriesStore(t *testing.T) {
	repo := &fakeAccessRepo{access: domain.EntityAccess{Readable: true}}
	gate := NewPermissionGate(repo, true, logger.NewNop())

	access := gate.Check(context.Background(), "user-1", "/event/record_open")
	if !access.Readable || access.Creatable {
		t.Errorf("Access = %+v, expected read-only", access)
	}
	if len(repo.entities) != 1 || repo.entities[0] != "record_open" {
		t.Errorf("Store queried with entities %v, expected [record_open]", repo.entities)
	}
}

func TestStoreFailureDeniesAccess(t *testing.T) {
	repo := &fakeAccessRepo{
		access: domain.EntityAccess{Readable: true, Creatable: true},
		err:    errors.New("store unavailable"),
	}
	gate := NewPermissionGate(repo, true, logger.NewNop())

	access := gate.Check(context.Background(), "user-1", "/event/record_open")
	if access.Readable || access.Creatable {
		t.Errorf("Store failure granted access: %+v", access)
	}
}

func TestInvalidChannelDeniesAccess(t *testing.T) {
	repo := &fakeAccessRepo{access: domain.EntityAccess{Readable: true, Creatable: true}}
	gate := NewPermissionGate(repo, true, logger.NewNop())

	access := gate.Check(context.Background(), "user-1", "not-a-channel")
	if access.Readable || access.Creatable {
		t.Errorf("Invalid channel granted access: %+v", access)
	}
	if len(repo.entities) != 0 {
		t.Errorf("Store queried for an invalid channel: %v", repo.entities)
	}
}
