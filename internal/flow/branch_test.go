package flow

import (
	"testing"

	"github.com/BTreeMap/SehaCoach/internal/models"
)

func TestFormatReply(t *testing.T) {
	r := models.Reply{Text: "أنت رجال ولا بنت؟", Options: []string{"رجال", "بنت"}}
	want := "أنت رجال ولا بنت؟\n\n1. رجال\n2. بنت"
	if got := FormatReply(r); got != want {
		t.Errorf("FormatReply() = %q, want %q", got, want)
	}
	if got := FormatReply(models.Reply{Text: "تم"}); got != "تم" {
		t.Errorf("FormatReply without options = %q", got)
	}
}

func TestSelectOption(t *testing.T) {
	opts := []string{"رجال", "بنت"}
	tests := []struct {
		in   string
		want string
	}{
		{"2", "بنت"},
		{"٢", "بنت"},
		{" 1 ", "رجال"},
		{"3", "3"},
		{"0", "0"},
		{"رجال", "رجال"},
	}
	for _, tt := range tests {
		if got := SelectOption(tt.in, opts); got != tt.want {
			t.Errorf("SelectOption(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
