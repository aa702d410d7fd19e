package protocol

// HELLO (viewer -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ViewerName      string            `json:"viewer_name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	// Edits lets the viewer send EDIT and SELECT_FRAME.
	Edits bool `json:"edits,omitempty"`
	// MaxMeshesPerTick caps CHUNK_MESH messages per tick; 0 means no cap.
	MaxMeshesPerTick int `json:"max_meshes_per_tick,omitempty"`
}

// WELCOME (server -> viewer)
type WelcomeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	SessionID       string       `json:"session_id"`
	VolumeID        string       `json:"volume_id"`
	Params          VolumeParams `json:"volume_params"`
}

type VolumeParams struct {
	TickRateHz  int     `json:"tick_rate_hz"`
	CellSize    float32 `json:"cell_size"`
	Overlap     float32 `json:"overlap"`
	Algorithm   string  `json:"algorithm"`
	SelfShade   float32 `json:"self_shade"`
	ShadeSource string  `json:"shade_source"`
}

// FRAME (server -> viewer): the current frame or its chunk layout changed. Viewers drop
// every chunk mesh they hold; the meshes of the new layout follow as CHUNK_MESH.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Frame           int    `json:"frame"`
	Frames          int    `json:"frames"`
	Epoch           uint64 `json:"epoch"`
	VolumeSize      [3]int `json:"volume_size"`
	ChunkSize       [3]int `json:"chunk_size"`
	ChunkCounts     [3]int `json:"chunk_counts"`
}

// CHUNK_MESH (server -> viewer). Positions and UVs are flattened (xyz / uv per vertex);
// colours are packed 0xRRGGBBAA. No indices means "clear this chunk".
type ChunkMeshMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Tick            uint64    `json:"tick"`
	Frame           int       `json:"frame"`
	Chunk           [3]int    `json:"chunk"`
	ShadeSource     string    `json:"shade_source"`
	Positions       []float32 `json:"positions"`
	UVs             []float32 `json:"uvs"`
	Colors          []uint32  `json:"colors"`
	Indices         []uint32  `json:"indices"`
	Digest          string    `json:"digest"`
}

// Edit operations.
const (
	EditSet    = "SET"
	EditFill   = "FILL"
	EditRotate = "ROTATE"
	EditScroll = "SCROLL"
)

// EDIT (viewer -> server)
type EditMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	EditID          string    `json:"edit_id"`
	Op              string    `json:"op"`
	Pos             [3]int    `json:"pos,omitempty"`
	Size            [3]int    `json:"size,omitempty"`
	Cell            *CellJSON `json:"cell,omitempty"`
	Quarters        int       `json:"quarters,omitempty"`
	Offset          [3]int    `json:"offset,omitempty"`
	Wrap            bool      `json:"wrap,omitempty"`
}

type CellJSON struct {
	State string `json:"state"`
	Value int    `json:"value"`
	Color [4]int `json:"color"`
}

// SELECT_FRAME (viewer -> server). Step, when non-zero, moves relative to the current
// frame with wrap-around and Frame is ignored.
type SelectFrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	EditID          string `json:"edit_id"`
	Frame           int    `json:"frame"`
	Step            int    `json:"step,omitempty"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
}
