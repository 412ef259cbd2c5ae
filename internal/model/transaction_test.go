package model

import (
	"strings"
	"testing"
)

func TestParseTransactionID(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    TransactionID
		wantErr bool
	}{
		{
			name: "canonical form",
			key:  "t1@bank-a",
			want: TransactionID{RecordID: "t1", SourceID: "bank-a"},
		},
		{
			name: "record id may contain the separator",
			key:  "TX@2024@bank-a",
			want: TransactionID{RecordID: "TX@2024", SourceID: "bank-a"},
		},
		{name: "missing separator", key: "t1-bank-a", wantErr: true},
		{name: "empty record id", key: "@bank-a", wantErr: true},
		{name: "empty source id", key: "t1@", wantErr: true},
		{name: "empty string", key: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTransactionID(tt.key)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTransactionID(%q) error = nil, want error", tt.key)
				}
				if !strings.Contains(err.Error(), "invalid transaction id") {
					t.Errorf("ParseTransactionID(%q) error = %v, want invalid id message", tt.key, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTransactionID(%q) error = %v, want nil", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("ParseTransactionID(%q) = %+v, want %+v", tt.key, got, tt.want)
			}
		})
	}
}

func TestTransactionID_Key(t *testing.T) {
	id := TransactionID{RecordID: "t1", SourceID: "bank-a"}
	if got := id.Key(); got != "t1@bank-a" {
		t.Errorf("Key() = %q, want %q", got, "t1@bank-a")
	}

	parsed, err := ParseTransactionID(id.Key())
	if err != nil {
		t.Fatalf("ParseTransactionID(Key()) error = %v", err)
	}
	if parsed != id {
		t.Errorf("round trip = %+v, want %+v", parsed, id)
	}
}

func TestTransactionID_IsZero(t *testing.T) {
	tests := []struct {
		name string
		id   TransactionID
		want bool
	}{
		{name: "both parts present", id: TransactionID{RecordID: "t1", SourceID: "bank-a"}, want: false},
		{name: "missing source id", id: TransactionID{RecordID: "t1"}, want: true},
		{name: "missing record id", id: TransactionID{SourceID: "bank-a"}, want: true},
		{name: "zero value", id: TransactionID{}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.IsZero(); got != tt.want {
				t.Errorf("IsZero() = %v, want %v", got, tt.want)
			}
		})
	}
}
