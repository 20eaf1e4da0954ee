package buffer

import (
	"testing"

	"github.com/dshills/docsync/internal/config"
)

func TestLargeFileRestrictions(t *testing.T) {
	on := config.LargeFileRestrictionConfig{Enabled: true, AllowClickableLink: true}
	off := config.LargeFileRestrictionConfig{Enabled: false}

	tests := []struct {
		name  string
		large bool
		r     config.LargeFileRestrictionConfig
		want  Restrictions
	}{
		{"small file", false, on, Restrictions{true, true, true, true}},
		{"large file restricted", true, on, Restrictions{false, false, false, true}},
		{"large file unrestricted", true, off, Restrictions{true, true, true, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Restrictions{
				BraceMatch:     AllowBraceMatch(tt.large, tt.r),
				AutoCompletion: AllowAutoCompletion(tt.large, tt.r),
				SmartHighlight: AllowSmartHighlight(tt.large, tt.r),
				ClickableLink:  AllowClickableLink(tt.large, tt.r),
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
