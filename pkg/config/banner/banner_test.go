package banner

import (
	"bytes"
	"strings"
	"testing"

	"slunch/pkg/config"
)

func TestPrintWithEffMentionsJobs(t *testing.T) {
	eff := config.EffectiveConfigResult{Config: &config.Config{}, DBPath: "db", Addr: ":8080"}
	if err := config.ValidateConfig(eff); err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
	var buf bytes.Buffer
	PrintWithEff(&buf, eff, "test")
	out := buf.String()
	for _, want := range []string{"cron=30 5 * * *", "Push: log only", "Admin key: MISSING"} {
		if !strings.Contains(out, want) {
			t.Errorf("banner missing %q:\n%s", want, out)
		}
	}
}
