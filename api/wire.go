package api

// Key is the message-kind discriminator on the control channel
type Key string

// Control channel message kind constants
const (
	KeyConfig Key = "config"
	KeyPing   Key = "ping"
	KeyStart  Key = "start"
	KeyStatus Key = "status"
	KeyNext   Key = "next"
	KeyEnd    Key = "end"
)

// Config is the capability announcement sent right after the socket opens.
// All fields are optional overrides; a host with no overrides sends Ping
// instead.
type Config struct {
	Key         Key      `json:"key"`
	Prio        *int     `json:"prio,omitempty"`
	Concurrency *int     `json:"concurrency,omitempty"`
	Lang        []string `json:"lang,omitempty"`
}

// Ping is the minimal keep-alive announcement
type Ping struct {
	Key Key `json:"key"`
}

// Start signals the server that the host is ready to receive tasks
type Start struct {
	Key Key `json:"key"`
}

// Status is the periodic host-status heartbeat
type Status struct {
	Key  Key      `json:"key"`
	Info HostInfo `json:"info"`
}

// HostInfo describes the judge host machine and its toolchains
type HostInfo struct {
	Platform  string            `json:"platform,omitempty"`
	Arch      string            `json:"arch,omitempty"`
	CPUs      int               `json:"cpus,omitempty"`
	MemoryKiB int64             `json:"memory_kib,omitempty"`
	Uptime    int64             `json:"uptime,omitempty"`
	Compilers map[string]string `json:"compilers,omitempty"`
}

func NewConfig(prio *int, concurrency *int, lang []string) Config {
	return Config{
		Key:         KeyConfig,
		Prio:        prio,
		Concurrency: concurrency,
		Lang:        lang,
	}
}

func NewPing() Ping {
	return Ping{Key: KeyPing}
}

func NewStart() Start {
	return Start{Key: KeyStart}
}

func NewStatus(info HostInfo) Status {
	return Status{Key: KeyStatus, Info: info}
}
