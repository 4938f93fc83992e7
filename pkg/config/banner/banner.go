package banner

import (
	"fmt"
	"io"

	"slunch/pkg/config"
)

const banner = `
 ____  _                  _     
/ ___|| |_   _ _ __   ___| |__  
\___ \| | | | | '_ \ / __| '_ \ 
 ___) | | |_| | | | | (__| | | |
|____/|_|\__,_|_| |_|\___|_| |_|
`

func status(ok bool, okText, missing string) string {
	if ok {
		return okText
	}
	return missing
}

// PrintWithEff prints the banner using an EffectiveConfigResult which
// provides richer context (config, addr, dbpath, source).
func PrintWithEff(w io.Writer, eff config.EffectiveConfigResult, version string) {
	c := eff.Config
	if c == nil {
		c = &config.Config{}
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "== Config =====================================================")
	fmt.Fprintf(w, "Listen:   %s\n", eff.Addr)
	fmt.Fprintf(w, "DB Path:  %s\n", eff.DBPath)
	fmt.Fprintf(w, "Timezone: %s\n", c.Server.Timezone)
	if version != "" {
		fmt.Fprintf(w, "Version:  %s\n", version)
	}
	fmt.Fprintf(w, "Config:   %s\n", src)

	fmt.Fprintln(w, "\n== Production? =================================================")
	fmt.Fprintf(w, "- NEIS API key: %s\n", status(c.Upstream.NEIS.APIKey != "", "OK", "MISSING (anonymous quota only)"))
	fmt.Fprintf(w, "- Admin key: %s\n", status(c.Admin.Key != "", "OK", "MISSING (admin routes answer 403)"))
	fmt.Fprintf(w, "- Timetable gateway: %s\n", status(c.Upstream.Timetable.BaseURL != "", c.Upstream.Timetable.BaseURL, "disabled"))
	if c.Push.Enabled {
		fmt.Fprintf(w, "- Push: FCM (project %s)\n", status(c.Push.ProjectID != "", c.Push.ProjectID, "from credentials"))
	} else {
		fmt.Fprintln(w, "- Push: log only")
	}
	fmt.Fprintf(w, "- Rate limit: %d/min per client, body limit %s\n", c.Server.RateLimit.PerMinute, c.Server.MaxBodySize)

	fmt.Fprintln(w, "\n== Jobs ========================================================")
	job := func(name string, enabled bool, cron string) {
		fmt.Fprintf(w, "- %-13s %s\n", name+":", status(enabled, "cron="+cron, "disabled"))
	}
	job("precache", config.On(c.Precache.Enabled), c.Precache.Cron)
	job("dispatch", config.On(c.Dispatch.Enabled), c.Dispatch.Cron)
	job("retention", config.On(c.Retention.Enabled), c.Retention.Cron)
	job("school cache", config.On(c.Retention.Enabled), c.Retention.SchoolCacheCron)
	fmt.Fprintln(w, "================================================================")
}
