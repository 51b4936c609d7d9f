package repository

import (
	"context"
	"testing"
	"time"

	"portal-auth/backend/internal/consultant/domain"
)

var _ Repository = (*MemoryRepository)(nil)

func exerciseRepository(t *testing.T, r Repository) {
	t.Helper()
	ctx := context.Background()
	c := &domain.Consultant{
		ID:         "0b6a3c52-7a0e-4d7f-8a0f-1d2c3b4a5e01",
		ExternalID: "azure-oid-1",
		Mail:       "jane@enterprise.example",
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	if err := r.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Role != domain.RoleConsultant || c.DisplayName != "jane@enterprise.example" {
		t.Errorf("defaults: role=%q name=%q", c.Role, c.DisplayName)
	}

	byMail, err := r.GetByMail(ctx, "JANE@enterprise.example")
	if err != nil || byMail == nil || byMail.ExternalID != "azure-oid-1" {
		t.Fatalf("GetByMail = %+v, %v", byMail, err)
	}
	byExt, err := r.GetByExternalID(ctx, "azure-oid-1")
	if err != nil || byExt == nil || byExt.Mail != c.Mail {
		t.Fatalf("GetByExternalID = %+v, %v", byExt, err)
	}
	if none, err := r.GetByMail(ctx, "john@enterprise.example"); err != nil || none != nil {
		t.Errorf("GetByMail missing = %+v, %v", none, err)
	}

	dupMail := &domain.Consultant{ID: "0b6a3c52-7a0e-4d7f-8a0f-1d2c3b4a5e02", ExternalID: "azure-oid-2", Mail: "jane@enterprise.example"}
	if err := r.Create(ctx, dupMail); err != ErrDuplicate {
		t.Errorf("Create duplicate mail: err = %v, want ErrDuplicate", err)
	}
	dupExt := &domain.Consultant{ID: "0b6a3c52-7a0e-4d7f-8a0f-1d2c3b4a5e03", ExternalID: "azure-oid-1", Mail: "john@enterprise.example"}
	if err := r.Create(ctx, dupExt); err != ErrDuplicate {
		t.Errorf("Create duplicate external id: err = %v, want ErrDuplicate", err)
	}
	if err := r.Create(ctx, &domain.Consultant{ID: "x", Mail: "a@enterprise.example"}); err == nil {
		t.Error("Create without external id should fail")
	}
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository())
}
