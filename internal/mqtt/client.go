package mqtt

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jbb1988/VF4Tester/internal/models"
	"github.com/jbb1988/VF4Tester/internal/services"
)

// Client wraps the MQTT client with test submission ingest functionality.
// Field test kits publish completed calibration tests; the client parses
// them and hands the results to the registered data handler.
type Client struct {
	client       mqtt.Client
	parser       *services.SubmissionParser
	topicSubmit  string
	dataHandler  func(*models.TestResult, []string)
	errorHandler func(error)
	isConnected  bool
}

// Config holds MQTT connection configuration
type Config struct {
	BrokerURL    string
	ClientID     string
	Username     string
	Password     string
	KeepAlive    time.Duration
	PingTimeout  time.Duration
	ConnectRetry bool
	TopicSubmit  string
}

// DefaultConfig returns default MQTT configuration
func DefaultConfig() *Config {
	return &Config{
		BrokerURL:    "tcp://localhost:1883",
		ClientID:     "vf4tester_backend",
		Username:     "",
		Password:     "",
		KeepAlive:    30 * time.Second,
		PingTimeout:  10 * time.Second,
		ConnectRetry: true,
		TopicSubmit:  "vf4/tests/submit",
	}
}

// NewClient creates a new MQTT client for field test kit ingest
func NewClient(config *Config) *Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.BrokerURL)
	opts.SetClientID(config.ClientID)
	opts.SetKeepAlive(config.KeepAlive)
	opts.SetPingTimeout(config.PingTimeout)
	opts.SetConnectRetry(config.ConnectRetry)
	opts.SetCleanSession(true)

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	topicSubmit := config.TopicSubmit
	if topicSubmit == "" {
		topicSubmit = "vf4/tests/submit"
	}

	client := &Client{
		parser:      services.NewSubmissionParser(),
		topicSubmit: topicSubmit,
		isConnected: false,
	}

	opts.SetDefaultPublishHandler(client.defaultMessageHandler)
	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)

	client.client = mqtt.NewClient(opts)

	return client
}

// Connect establishes connection to MQTT broker
func (c *Client) Connect() error {
	log.Println("Connecting to MQTT broker...")

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Println("Successfully connected to MQTT broker")
	c.isConnected = true
	return nil
}

// Disconnect closes the MQTT connection
func (c *Client) Disconnect() {
	if c.isConnected {
		c.client.Disconnect(250)
		c.isConnected = false
		log.Println("Disconnected from MQTT broker")
	}
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	return c.isConnected && c.client.IsConnected()
}

// SubscribeToSubmissions subscribes to test submission topics
func (c *Client) SubscribeToSubmissions() error {
	topics := map[string]byte{
		"vf4/tests/+/submit": 1, // + is wildcard for kit ID
		c.topicSubmit:        1, // General submission topic
	}

	for topic, qos := range topics {
		if token := c.client.Subscribe(topic, qos, c.submissionHandler); token.Wait() && token.Error() != nil {
			return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
		}
		log.Printf("Subscribed to topic: %s", topic)
	}

	return nil
}

// SetDataHandler sets the callback for parsed test results. The second
// argument carries non-blocking advisory warnings about the reading.
func (c *Client) SetDataHandler(handler func(*models.TestResult, []string)) {
	c.dataHandler = handler
}

// SetErrorHandler sets the callback function for errors
func (c *Client) SetErrorHandler(handler func(error)) {
	c.errorHandler = handler
}

// submissionHandler processes incoming test submission messages
func (c *Client) submissionHandler(client mqtt.Client, msg mqtt.Message) {
	log.Printf("Received test submission on topic %s: %s", msg.Topic(), string(msg.Payload()))

	// Try parsing as JSON first (preferred format)
	result, warnings, err := c.parser.ParseSubmissionJSON(msg.Payload())
	if err != nil {
		// Fallback to comma-separated format used by older kit firmware
		result, warnings, err = c.parser.ParseSubmissionString(string(msg.Payload()))
		if err != nil {
			log.Printf("Failed to parse test submission: %v", err)
			if c.errorHandler != nil {
				c.errorHandler(fmt.Errorf("test submission parsing failed: %w", err))
			}
			return
		}
	}

	log.Printf("Parsed test submission: %s", c.parser.FormatResult(result))
	for _, warning := range warnings {
		log.Printf("Submission advisory: %s", warning)
	}

	if c.dataHandler != nil {
		c.dataHandler(result, warnings)
	}
}

// defaultMessageHandler handles messages on unsubscribed topics
func (c *Client) defaultMessageHandler(client mqtt.Client, msg mqtt.Message) {
	log.Printf("Received message on unhandled topic %s: %s", msg.Topic(), string(msg.Payload()))
}

// onConnect callback when connection is established
func (c *Client) onConnect(client mqtt.Client) {
	log.Println("MQTT client connected")
	c.isConnected = true
}

// onConnectionLost callback when connection is lost
func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection lost: %v", err)
	c.isConnected = false

	if c.errorHandler != nil {
		c.errorHandler(fmt.Errorf("MQTT connection lost: %w", err))
	}
}
