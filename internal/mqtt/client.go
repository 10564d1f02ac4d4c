package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/smartgrow/irrigation-edge/internal/models"
	"github.com/smartgrow/irrigation-edge/internal/parse"
)

// Client wraps the MQTT client with irrigation specific functionality:
// the inbound sample feed, inbound operator commands and outbound
// decision/anomaly telemetry.
type Client struct {
	client         mqtt.Client
	parser         *parse.SampleParser
	sampleHandler  func(models.Sample)
	commandHandler func(models.OperatorCommand)
	errorHandler   func(error)
	isConnected    bool
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
}

// DefaultConfig returns default MQTT configuration
func DefaultConfig() *Config {
	return &Config{
		BrokerURL:    "tcp://localhost:1883",
		ClientID:     "irrigation_edge",
		Username:     "",
		Password:     "",
		KeepAlive:    30 * time.Second,
		PingTimeout:  10 * time.Second,
		ConnectRetry: true,
	}
}

// NewClient creates a new MQTT client for the irrigation controller
func NewClient(config *Config) *Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.BrokerURL)
	opts.SetClientID(config.ClientID)
	opts.SetKeepAlive(config.KeepAlive)
	opts.SetPingTimeout(config.PingTimeout)
	opts.SetCleanSession(true)

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	client := &Client{
		parser:      parse.NewSampleParser(),
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

// SubscribeToSamples subscribes to the sensor sample topics
func (c *Client) SubscribeToSamples() error {
	topics := map[string]byte{
		"irrigation/sensors/+/data": 1, // + is wildcard for channel
		"irrigation/sensors/data":   1, // General sample topic, channel in payload
	}

	for topic, qos := range topics {
		if token := c.client.Subscribe(topic, qos, c.sampleDataHandler); token.Wait() && token.Error() != nil {
			return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
		}
		log.Printf("Subscribed to topic: %s", topic)
	}

	return nil
}

// SubscribeToCommands subscribes to the operator command topic
func (c *Client) SubscribeToCommands() error {
	topic := "irrigation/commands"
	if token := c.client.Subscribe(topic, 1, c.commandDataHandler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}
	log.Printf("Subscribed to command topic: %s", topic)
	return nil
}

// SetSampleHandler sets the callback for parsed samples
func (c *Client) SetSampleHandler(handler func(models.Sample)) {
	c.sampleHandler = handler
}

// SetCommandHandler sets the callback for operator commands
func (c *Client) SetCommandHandler(handler func(models.OperatorCommand)) {
	c.commandHandler = handler
}

// SetErrorHandler sets the callback function for errors
func (c *Client) SetErrorHandler(handler func(error)) {
	c.errorHandler = handler
}

// channelFromTopic extracts the channel segment from
// irrigation/sensors/{channel}/data, returning -1 when absent.
func channelFromTopic(topic string) int {
	parts := strings.Split(topic, "/")
	if len(parts) == 4 {
		if ch, err := strconv.Atoi(parts[2]); err == nil {
			return ch
		}
	}
	return -1
}

// sampleDataHandler processes incoming sample messages
func (c *Client) sampleDataHandler(client mqtt.Client, msg mqtt.Message) {
	channel := channelFromTopic(msg.Topic())

	// Try parsing as JSON first (preferred format)
	sample, err := c.parser.ParseSampleJSON(msg.Payload(), channel)
	if err != nil {
		// Fallback to comma-separated format
		sample, err = c.parser.ParseSampleString(string(msg.Payload()))
		if err != nil {
			log.Printf("Failed to parse sample on %s: %v", msg.Topic(), err)
			if c.errorHandler != nil {
				c.errorHandler(fmt.Errorf("sample parsing failed: %w", err))
			}
			return
		}
	}

	if c.sampleHandler != nil {
		c.sampleHandler(*sample)
	}
}

// commandDataHandler processes incoming operator commands
func (c *Client) commandDataHandler(client mqtt.Client, msg mqtt.Message) {
	log.Printf("Received command on topic %s: %s", msg.Topic(), string(msg.Payload()))

	var command models.OperatorCommand
	if err := json.Unmarshal(msg.Payload(), &command); err != nil {
		log.Printf("Failed to parse command: %v", err)
		if c.errorHandler != nil {
			c.errorHandler(fmt.Errorf("command parsing failed: %w", err))
		}
		return
	}

	if c.commandHandler != nil {
		c.commandHandler(command)
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

// publishJSON marshals a payload and publishes it with QoS 1.
func (c *Client) publishJSON(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}
	if token := c.client.Publish(topic, 1, false, data); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

// PublishDecisionEvent publishes a decision and its outcome
func (c *Client) PublishDecisionEvent(event *models.DecisionEvent) error {
	return c.publishJSON("irrigation/decisions", event)
}

// PublishAnomalyEvent publishes a detected anomaly
func (c *Client) PublishAnomalyEvent(event *models.AnomalyEvent) error {
	return c.publishJSON("irrigation/anomalies", event)
}

// PublishSystemHealth publishes the safety state snapshot
func (c *Client) PublishSystemHealth(health *models.SystemHealth) error {
	return c.publishJSON("irrigation/health", health)
}

// PublishPumpStatuses publishes the actuator state snapshots
func (c *Client) PublishPumpStatuses(statuses []models.PumpStatus) error {
	return c.publishJSON("irrigation/pumps", statuses)
}
