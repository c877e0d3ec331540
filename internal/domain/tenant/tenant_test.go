package tenant_test

import (
	"testing"

	"github.com/flourisha/brain/internal/domain/tenant"
)

func TestCreateRequestValidate(t *testing.T) {
	tests := []struct {
		req     tenant.CreateRequest
		wantErr bool
	}{
		{tenant.CreateRequest{Name: "Acme", Slug: "acme"}, false},
		{tenant.CreateRequest{Name: "Acme", Slug: "acme-2"}, false},
		{tenant.CreateRequest{Slug: "acme"}, true},
		{tenant.CreateRequest{Name: "Acme", Slug: "Acme"}, true},
		{tenant.CreateRequest{Name: "Acme", Slug: "-acme"}, true},
		{tenant.CreateRequest{Name: "Acme", Slug: ""}, true},
	}
	for _, tt := range tests {
		if err := tt.req.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) = %v, wantErr %v", tt.req, err, tt.wantErr)
		}
	}
}
