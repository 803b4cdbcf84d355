package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        string `json:"player_id"`
	Name            string `json:"name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	PlayerID        string         `json:"player_id"`
	SessionID       string         `json:"session_id"`
	Inventory       string         `json:"inventory"`
	TickRateHz      int            `json:"tick_rate_hz"`
	Pos             [3]float64     `json:"pos"`
	Catalog         CatalogDigests `json:"catalog"`
}

type CatalogDigests struct {
	ItemsDigest  string `json:"items_digest"`
	ItemCount    int    `json:"item_count"`
	TuningDigest string `json:"tuning_digest,omitempty"`
}

// MUTATE (client -> server): one inventory mutation. An empty From or To
// means the player's own inventory; a missing slot means "any".
type MutateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref"`
	Kind            string `json:"kind"`
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
	FromSlot        *int   `json:"from_slot,omitempty"`
	ToSlot          *int   `json:"to_slot,omitempty"`
	Item            string `json:"item,omitempty"`
	Amount          int    `json:"amount,omitempty"`
}

// CMD (client -> server): a chat-style market command.
type CmdMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Ref             string   `json:"ref"`
	Cmd             string   `json:"cmd"`
	Args            []string `json:"args,omitempty"`
}

// MOVE_TO (client -> server): authoritative player position update.
type MoveToMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Pos             [3]float64 `json:"pos"`
}

// RESULT (server -> client) answers one MUTATE or CMD by ref.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Status          string `json:"status,omitempty"`
}

type NoticeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Text            string `json:"text"`
}

// STATUS (server -> client): floating status text over a container.
type StatusMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Status          string `json:"status"`
	Container       string `json:"container,omitempty"`
}

type ItemStack struct {
	Slot   int    `json:"slot"`
	Item   string `json:"item"`
	Count  int    `json:"count"`
	Max    int    `json:"max,omitempty"`
	Locked bool   `json:"locked,omitempty"`
}

// CONTAINER (server -> client): contents of a container the player touched.
type ContainerMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Container       string      `json:"container"`
	Kind            string      `json:"kind"`
	Name            string      `json:"name,omitempty"`
	Slots           []ItemStack `json:"slots"`
}
