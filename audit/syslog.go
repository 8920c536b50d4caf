package audit

import (
	"fmt"
	"net"
	"strings"

	"github.com/aras-services/svccore/config"
)

// SyslogSender dispatches audit events as RFC-5424 syslog messages over
// UDP or TCP. No external syslog library is used: the format is simple
// enough to build directly, and every dependency candidate in the pack
// is built around the standard library's syslog facilities, not RFC 5424
// structured data.
type SyslogSender struct {
	address  string
	network  string
	facility int
	appName  string
}

// NewSyslogSender builds a sender from configuration. cfg.Transport of
// "tcp" dials TCP; anything else (including "udp" and "") uses UDP.
func NewSyslogSender(cfg config.SyslogConfig) *SyslogSender {
	network := "udp"
	if cfg.Transport == "tcp" {
		network = "tcp"
	}
	appName := cfg.AppName
	if appName == "" {
		appName = "svccore"
	}
	return &SyslogSender{
		address:  cfg.Address,
		network:  network,
		facility: cfg.Facility,
		appName:  appName,
	}
}

// Send transmits event as a single RFC-5424 message. TCP framing appends
// a trailing newline per RFC 5425.
func (s *SyslogSender) Send(event Event) error {
	message := s.formatRFC5424(event)

	if s.network == "tcp" {
		conn, err := net.Dial("tcp", s.address)
		if err != nil {
			return fmt.Errorf("dialing syslog tcp endpoint: %w", err)
		}
		defer conn.Close()
		_, err = conn.Write([]byte(message + "\n"))
		return err
	}

	conn, err := net.Dial("udp", s.address)
	if err != nil {
		return fmt.Errorf("dialing syslog udp endpoint: %w", err)
	}
	defer conn.Close()
	_, err = conn.Write([]byte(message))
	return err
}

// formatRFC5424 renders: <PRI>VERSION TIMESTAMP HOSTNAME APP-NAME PROCID
// MSGID [SD-ID SD-PARAM...] MSG
func (s *SyslogSender) formatRFC5424(event Event) string {
	pri := s.facility*8 + int(event.Severity.Syslog())
	timestamp := event.Timestamp.Format("2006-01-02T15:04:05.000000Z")
	hostname := event.ServiceName
	msgid := event.Kind.String()

	var params []string
	if event.Source.IP != "" {
		params = append(params, fmt.Sprintf(`src_ip="%s"`, escapeSDValue(event.Source.IP)))
	}
	if event.Source.Subject != "" {
		params = append(params, fmt.Sprintf(`subject="%s"`, escapeSDValue(event.Source.Subject)))
	}
	if event.Source.RequestID != "" {
		params = append(params, fmt.Sprintf(`request_id="%s"`, escapeSDValue(event.Source.RequestID)))
	}
	if event.Method != "" {
		params = append(params, fmt.Sprintf(`method="%s"`, escapeSDValue(event.Method)))
	}
	if event.Path != "" {
		params = append(params, fmt.Sprintf(`path="%s"`, escapeSDValue(event.Path)))
	}
	if event.StatusCode != nil {
		params = append(params, fmt.Sprintf(`status="%d"`, *event.StatusCode))
	}
	if event.DurationMs != nil {
		params = append(params, fmt.Sprintf(`duration_ms="%d"`, *event.DurationMs))
	}
	if event.Hash != "" {
		params = append(params, fmt.Sprintf(`hash="%s"`, event.Hash))
	}
	params = append(params, fmt.Sprintf(`seq="%d"`, event.Sequence))

	structuredData := "-"
	if len(params) > 0 {
		structuredData = fmt.Sprintf("[audit@49610 %s]", strings.Join(params, " "))
	}

	msg := fmt.Sprintf("%s seq=%d", event.Kind.String(), event.Sequence)

	return fmt.Sprintf("<%d>1 %s %s %s - %s %s %s",
		pri, timestamp, hostname, s.appName, msgid, structuredData, msg)
}

func escapeSDValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, `]`, `\]`)
	return s
}
