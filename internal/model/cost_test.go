package model

import "testing"

func TestCostUpdate_Apply(t *testing.T) {
	desc := "Groceries"
	amount := 42.5
	base := Cost{ID: 1, UserID: 2, Description: "Coffee", Amount: 3.2}

	tests := []struct {
		name     string
		update   CostUpdate
		wantDesc string
		wantAmt  float64
		empty    bool
	}{
		{"no fields", CostUpdate{}, "Coffee", 3.2, true},
		{"description only", CostUpdate{Description: &desc}, "Groceries", 3.2, false},
		{"amount only", CostUpdate{Amount: &amount}, "Coffee", 42.5, false},
		{"both", CostUpdate{Description: &desc, Amount: &amount}, "Groceries", 42.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.update.Apply(base)
			if got.Description != tt.wantDesc || got.Amount != tt.wantAmt {
				t.Errorf("Apply() = %+v", got)
			}
			if got.ID != base.ID || got.UserID != base.UserID {
				t.Errorf("Apply() changed identity: %+v", got)
			}
			if tt.update.IsEmpty() != tt.empty {
				t.Errorf("IsEmpty() = %v, want %v", tt.update.IsEmpty(), tt.empty)
			}
		})
	}
}

func TestActivityAction_Valid(t *testing.T) {
	for _, a := range []ActivityAction{ActionCreated, ActionUpdated, ActionDeleted} {
		if !a.Valid() {
			t.Errorf("%q should be valid", a)
		}
	}
	if ActivityAction("archived").Valid() {
		t.Error("unknown action should be invalid")
	}
}

func TestUser_ToResponseOmitsHash(t *testing.T) {
	u := &User{ID: 9, UserName: "ali", PasswordHash: "$argon2id$..."}
	resp := u.ToResponse()
	if resp.ID != 9 || resp.UserName != "ali" {
		t.Errorf("ToResponse() = %+v", resp)
	}
}
