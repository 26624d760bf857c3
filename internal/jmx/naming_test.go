package jmx

import (
	"testing"

	"jmxgen/internal/spec"
)

func TestIsUglyOperationID(t *testing.T) {
	tests := []struct {
		operationID string
		method      string
		want        bool
	}{
		{"listPets", "GET", false},
		{"createUserProfile", "POST", false},
		{"get_api_v1_user_profiles_user_id_settings_list", "GET", true},
		{"get_users_v2_ack_list", "GET", true},
		{"post_api_users_create_new_user_account_endpoint", "POST", true},
		{"getapiusersbyidwithdetails", "GET", true},
		{"shortid", "GET", false},
		{"GET_ALL_USERS_FROM_DATABASE", "GET", false},
	}
	for _, tt := range tests {
		if got := isUglyOperationID(tt.operationID, tt.method); got != tt.want {
			t.Errorf("isUglyOperationID(%q, %q) = %v, want %v", tt.operationID, tt.method, got, tt.want)
		}
	}
}

func TestNameFromPath(t *testing.T) {
	tests := []struct {
		path   string
		method string
		want   string
	}{
		{"/api/user-profiles/{id}", "GET", "UserProfiles"},
		{"/api/shipping_addresses", "GET", "ShippingAddresses"},
		{"/orders", "POST", "Orders"},
		{"/api/v1/items/{itemId}/reviews", "GET", "Reviews"},
		{"/", "DELETE", "DELETE_request"},
		{"/{id}", "GET", "GET_request"},
	}
	for _, tt := range tests {
		if got := nameFromPath(tt.path, tt.method); got != tt.want {
			t.Errorf("nameFromPath(%q, %q) = %q, want %q", tt.path, tt.method, got, tt.want)
		}
	}
}

func TestReadableOperationName(t *testing.T) {
	tests := []struct {
		name string
		ep   spec.Endpoint
		want string
	}{
		{
			name: "clean id without summary",
			ep:   spec.Endpoint{OperationID: "listPets", Method: "GET", Path: "/pets"},
			want: "listPets",
		},
		{
			name: "clean id with summary",
			ep:   spec.Endpoint{OperationID: "listPets", Method: "GET", Path: "/pets", Summary: "List all pets"},
			want: "listPets - List all pets",
		},
		{
			name: "missing id falls back to path",
			ep:   spec.Endpoint{Method: "GET", Path: "/api/pet-owners"},
			want: "PetOwners",
		},
		{
			name: "generated id falls back to path",
			ep: spec.Endpoint{
				OperationID: "get_api_v1_pet_owners_owner_id_pets_list",
				Method:      "GET", Path: "/api/v1/pet-owners/{ownerId}/pets",
			},
			want: "Pets",
		},
		{
			name: "summary equal to name is not repeated",
			ep:   spec.Endpoint{OperationID: "listPets", Method: "GET", Path: "/pets", Summary: "listPets"},
			want: "listPets",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := readableOperationName(&tt.ep); got != tt.want {
				t.Errorf("readableOperationName() = %q, want %q", got, tt.want)
			}
		})
	}
}
