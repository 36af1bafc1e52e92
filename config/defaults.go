package config

import (
	"time"

	"github.com/spf13/viper"
)

const DefaultReconnectDelay = 5 * time.Second

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.ws_token", "")
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.poll_timeout", 30*time.Second)

	v.SetDefault("phoenixd.url", "http://127.0.0.1:9740")
	v.SetDefault("phoenixd.password", "")
	v.SetDefault("phoenixd.ws_path", "/websocket")
	v.SetDefault("phoenixd.timeout", 30*time.Second)
	v.SetDefault("phoenixd.decode_cache_size", 512)
	v.SetDefault("phoenixd.ping_interval", 30*time.Second)
	v.SetDefault("phoenixd.pong_wait", 60*time.Second)

	v.SetDefault("reconnect.delay", DefaultReconnectDelay)
	v.SetDefault("reconnect.max_delay", time.Duration(0))
	v.SetDefault("reconnect.multiplier", 2.0)

	v.SetDefault("hub.buffer_size", 64)
	v.SetDefault("hub.write_timeout", 10*time.Second)
	v.SetDefault("hub.ping_interval", 30*time.Second)
	v.SetDefault("hub.pong_wait", 60*time.Second)
	v.SetDefault("hub.max_message_size", int64(4096))

	v.SetDefault("paymentlog.dsn", "")

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "phoenixd.events")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.compress", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "phoenixd-dashboard")

	v.SetDefault("breaker.max_failures", uint32(5))
	v.SetDefault("breaker.open_timeout", 30*time.Second)
	v.SetDefault("breaker.half_open_requests", uint32(1))
}
