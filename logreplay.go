package botfilter

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/satyrius/gonx"
	"github.com/scraperwall/botfilter/data"
	log "github.com/sirupsen/logrus"
)

// DefaultLogFormat is the nginx combined log format
const DefaultLogFormat = `$remote_addr - $remote_user [$time_local] "$request" $status $body_bytes_sent "$http_referer" "$http_user_agent"`

const logTimeLayout = "02/Jan/2006:15:04:05 -0700"

var reqRegexp = regexp.MustCompile(`^([A-Z]+)\s+(.+?)\s+(HTTP/\d+\.\d+)$`)

// LogReplay runs every request of an access log through the filter. Trap hits
// and verified clicks change the evidence just like live traffic does.
// It returns the number of decisions per route and action.
func (b *Botfilter) LogReplay(logfile, format string) (map[string]int, error) {
	fh, err := os.Open(logfile)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return b.filter.Replay(fh, format)
}

// Replay runs the access log read from r through the filter
func (f *Filter) Replay(r io.Reader, format string) (map[string]int, error) {
	if format == "" {
		format = DefaultLogFormat
	}

	counts := make(map[string]int)
	reader := gonx.NewReader(r, format)
	lines := 0

	for {
		entry, err := reader.Read()
		if err == io.EOF {
			break
		}
		lines++
		if err != nil {
			log.Debugf("line %d: %s", lines, err)
			continue
		}

		req, err := f.logRequest(entry)
		if err != nil {
			log.Debugf("line %d: %s", lines, err)
			continue
		}

		route, v := f.Decide(req)
		f.record(req, route, v)
		counts[route.String()+"/"+v.Action.String()]++
	}

	log.Infof("replayed %d lines", lines)

	return counts, nil
}

// logRequest builds a request from a log entry. The client IP is picked from
// the configured sources like it is for live traffic, mapped to log fields.
func (f *Filter) logRequest(entry *gonx.Entry) (*data.Request, error) {
	httpRequest, err := entry.Field("request")
	if err != nil {
		return nil, err
	}

	reqData := reqRegexp.FindStringSubmatch(httpRequest)
	if len(reqData) < 4 {
		return nil, fmt.Errorf("malformed request %q", httpRequest)
	}

	ip := data.FirstIP(f.sources, func(source string) string {
		value, err := entry.Field(logField(source))
		if err != nil {
			return ""
		}
		return value
	})

	t := time.Now()
	if local, err := entry.Field("time_local"); err == nil {
		if parsed, err := time.Parse(logTimeLayout, local); err == nil {
			t = parsed
		}
	}

	host, _ := entry.Field("host")
	userAgent, _ := entry.Field("http_user_agent")
	referer, _ := entry.Field("http_referer")

	return data.NewLogRequest(reqData[1], reqData[2], host, userAgent, referer, ip, t)
}

// logField maps an IP source to the nginx variable holding it
func logField(source string) string {
	if strings.EqualFold(source, "remote") {
		return "remote_addr"
	}
	return "http_" + strings.ReplaceAll(strings.ToLower(source), "-", "_")
}
