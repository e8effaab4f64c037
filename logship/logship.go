// Package logship ships batches of application log entries to a remote
// collector when the user consented to log sharing.
package logship

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/klauspost/compress/gzip"
	"lobby-pilot/applog"
	"os"
	"resty.dev/v3"
	"time"
)

const requestTimeout = 10 * time.Second

type LogMessage struct {
	Timestamp time.Time              `json:"timestamp"`
	Message   string                 `json:"message"`
	MetaData  map[string]interface{} `json:"metaData"`
}

type LogBatch struct {
	RunID    string       `json:"runId"`
	Host     string       `json:"host,omitempty"`
	Messages []LogMessage `json:"messages"`
}

// NewLogMessages converts queued application log entries into the wire form.
// Fields that cannot be encoded are left out.
func NewLogMessages(entries []*applog.LogEntry) []LogMessage {
	ret := make([]LogMessage, 0, len(entries))

	for _, entry := range entries {
		if entry == nil || entry.Entry == nil {
			continue
		}

		msg := LogMessage{
			Timestamp: entry.Entry.Time,
			Message:   entry.Entry.Message,
			MetaData: map[string]interface{}{
				"level": entry.Entry.Level.String(),
			},
		}
		if entry.Entry.Caller.Defined {
			msg.MetaData["caller"] = entry.Entry.Caller.TrimmedPath()
		}

		for _, field := range entry.Fields {
			data, err := applog.ExtractFieldValue(field)
			if err != nil {
				continue
			}
			msg.MetaData[field.Key] = data
		}

		ret = append(ret, msg)
	}

	return ret
}

// Client posts gzip-compressed JSON batches to a collector endpoint.
type Client struct {
	endpoint   string
	runID      string
	host       string
	httpClient *resty.Client
}

func NewClient(endpoint string, runID string) *Client {
	host, _ := os.Hostname()
	return &Client{
		endpoint:   endpoint,
		runID:      runID,
		host:       host,
		httpClient: resty.New().SetTimeout(requestTimeout),
	}
}

// WriteLogEntryToRemote implements applog.RemoteLogSender.
func (c *Client) WriteLogEntryToRemote(entries []*applog.LogEntry) error {
	messages := NewLogMessages(entries)
	if len(messages) == 0 {
		return nil
	}

	body, err := c.encode(LogBatch{RunID: c.runID, Host: c.host, Messages: messages})
	if err != nil {
		return err
	}

	resp, err := c.httpClient.R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Content-Encoding", "gzip").
		SetBody(body).
		Post(c.endpoint)

	if err != nil {
		return fmt.Errorf("posting log batch failed: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("posting log batch failed: %v", resp.Status())
	}

	return nil
}

func (c *Client) encode(batch LogBatch) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(batch); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("encoding log batch failed: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compressing log batch failed: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Client) Close() error {
	return c.httpClient.Close()
}
