package publishers

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Supported publisher types.
	TypeStdout    = "stdout"
	TypeHTTP      = "http"
	TypeSQS       = "sqs"
	TypeSNS       = "sns"
	TypeGCPPubSub = "gcp_pubsub"
)

// PublisherConfig is one entry of the publishers file. Only the block that
// matches Type is read.
type PublisherConfig struct {
	ID      string               `json:"id" yaml:"id"`
	Type    string               `json:"type" yaml:"type"`
	Enabled *bool                `json:"enabled" yaml:"enabled"`
	SQS     *SQSPublisherConfig  `json:"sqs" yaml:"sqs"`
	SNS     *SNSPublisherConfig  `json:"sns" yaml:"sns"`
	HTTP    *HTTPPublisherConfig `json:"http" yaml:"http"`
	PubSub  *GCPQueueConfig      `json:"gcp_pubsub" yaml:"gcp_pubsub"`
}

// AWSAccess overrides the default AWS credential chain and endpoint.
type AWSAccess struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `json:"session_token" yaml:"session_token"`
}

type SQSPublisherConfig struct {
	QueueURL  string `json:"uri" yaml:"uri"`
	Region    string `json:"region" yaml:"region"`
	AWSAccess `yaml:",inline"`
}

type SNSPublisherConfig struct {
	TopicARN  string `json:"topic_arn" yaml:"topic_arn"`
	Region    string `json:"region" yaml:"region"`
	AWSAccess `yaml:",inline"`
}

type GCPQueueConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// HTTPPublisherConfig posts each build event as JSON to URL.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// sinkBlock is the type specific section of a publisher entry.
type sinkBlock interface {
	normalize()
	check() error
}

// sinkBlocks returns the section a publisher type reads and whether the entry
// carries it. Types without an entry, such as stdout, need no section.
var sinkBlocks = map[string]func(*PublisherConfig) (sinkBlock, bool){
	TypeHTTP:      func(c *PublisherConfig) (sinkBlock, bool) { return c.HTTP, c.HTTP != nil },
	TypeSQS:       func(c *PublisherConfig) (sinkBlock, bool) { return c.SQS, c.SQS != nil },
	TypeSNS:       func(c *PublisherConfig) (sinkBlock, bool) { return c.SNS, c.SNS != nil },
	TypeGCPPubSub: func(c *PublisherConfig) (sinkBlock, bool) { return c.PubSub, c.PubSub != nil },
}

func (cfg PublisherConfig) block() (sinkBlock, bool, bool) {
	get, ok := sinkBlocks[cfg.Type]
	if !ok {
		return nil, false, false
	}
	b, present := get(&cfg)
	return b, present, true
}

// normalized returns cfg with its identity and own block cleaned up and
// defaults applied.
func (cfg PublisherConfig) normalized() PublisherConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	if cfg.Enabled == nil {
		on := true
		cfg.Enabled = &on
	}

	// Blocks are copied so the caller's entry is left untouched.
	switch cfg.Type {
	case TypeHTTP:
		cfg.HTTP = cloned(cfg.HTTP)
	case TypeSQS:
		cfg.SQS = cloned(cfg.SQS)
	case TypeSNS:
		cfg.SNS = cloned(cfg.SNS)
	case TypeGCPPubSub:
		cfg.PubSub = cloned(cfg.PubSub)
	}
	if b, present, _ := cfg.block(); present {
		b.normalize()
	}
	return cfg
}

func cloned[T any](p *T) *T {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func (cfg PublisherConfig) validate() error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	if cfg.Type == "" {
		return fmt.Errorf("publisher %q: type is required", cfg.ID)
	}
	b, present, known := cfg.block()
	if !known {
		// Custom types are checked by the builder registered for them.
		return nil
	}
	if !present {
		return fmt.Errorf("publisher %q: %s block is required", cfg.ID, cfg.Type)
	}
	if err := b.check(); err != nil {
		return fmt.Errorf("publisher %q: %s.%w", cfg.ID, cfg.Type, err)
	}
	return nil
}

// EnabledValue reports whether the entry is enabled; unset means enabled.
func (cfg PublisherConfig) EnabledValue() bool {
	return cfg.Enabled == nil || *cfg.Enabled
}

type missingField string

func (f missingField) Error() string { return string(f) + " is required" }

func (c *HTTPPublisherConfig) normalize() {
	c.URL = strings.TrimSpace(c.URL)
	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method == "" {
		c.Method = "POST"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 5
	}

	headers := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			headers[k] = v
		}
	}
	c.Headers = nil
	if len(headers) > 0 {
		c.Headers = headers
	}
}

func (c *HTTPPublisherConfig) check() error {
	if c.URL == "" {
		return missingField("url")
	}
	return nil
}

func (c *SQSPublisherConfig) normalize() {
	c.QueueURL = strings.TrimSpace(c.QueueURL)
	c.Region = strings.TrimSpace(c.Region)
	c.AWSAccess.normalize()
}

func (c *SQSPublisherConfig) check() error {
	switch {
	case c.QueueURL == "":
		return missingField("uri")
	case c.Region == "":
		return missingField("region")
	}
	return c.AWSAccess.check()
}

func (c *SNSPublisherConfig) normalize() {
	c.TopicARN = strings.TrimSpace(c.TopicARN)
	c.Region = strings.TrimSpace(c.Region)
	c.AWSAccess.normalize()
}

func (c *SNSPublisherConfig) check() error {
	switch {
	case c.TopicARN == "":
		return missingField("topic_arn")
	case c.Region == "":
		return missingField("region")
	}
	return c.AWSAccess.check()
}

func (c *GCPQueueConfig) normalize() {
	c.ProjectID = strings.TrimSpace(c.ProjectID)
	c.Topic = strings.TrimSpace(c.Topic)
	c.CredentialsFile = strings.TrimSpace(c.CredentialsFile)
}

func (c *GCPQueueConfig) check() error {
	switch {
	case c.ProjectID == "":
		return missingField("project_id")
	case c.Topic == "":
		return missingField("topic")
	}
	return nil
}

func (a *AWSAccess) normalize() {
	for _, f := range []*string{&a.Endpoint, &a.AccessKeyID, &a.SecretAccessKey, &a.SessionToken} {
		*f = strings.TrimSpace(*f)
	}
}

func (a *AWSAccess) check() error {
	if (a.AccessKeyID == "") != (a.SecretAccessKey == "") {
		return errors.New("access_key_id and secret_access_key must be set together")
	}
	return nil
}
