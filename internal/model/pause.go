package model

// PauseFlags gates the three externally-reachable entry points.
type PauseFlags struct {
	Deposit  bool `json:"deposit"`
	Withdraw bool `json:"withdraw"`
	Claim    bool `json:"claim"`
}
