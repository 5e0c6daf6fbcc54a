package fixtures

import "testing"

func TestContactsIsACopy(t *testing.T) {
	a := Contacts()
	a[0].Name = "changed"
	a[0].Tags[0] = "changed"

	b := Contacts()
	if b[0].Name == "changed" || b[0].Tags[0] == "changed" {
		t.Errorf("Contacts() shares state between calls: %+v", b[0])
	}
}

func TestContactIDsUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range Contacts() {
		if seen[c.ID] {
			t.Errorf("duplicate contact id %q", c.ID)
		}
		seen[c.ID] = true
		if c.Name == "" || c.Email == "" {
			t.Errorf("contact %q missing name or email", c.ID)
		}
	}
}

func TestMessagesNotEmpty(t *testing.T) {
	if len(Inbox()) == 0 || len(Outbox()) == 0 || len(ActivityLog()) == 0 || len(Daily()) == 0 {
		t.Error("demo fixtures should not be empty")
	}
}
