package pipeline

// Stage is a step of a single compression run. A run moves through
//
//	Ready → CrystallineAttempt → Accepted → Packaged
//	Ready → CrystallineAttempt → Rejected → IFSEncode → Packaged
type Stage int

const (
	StageReady Stage = iota
	StageCrystallineAttempt
	StageAccepted
	StageRejected
	StageIFSEncode
	StagePackaged
)

func (s Stage) String() string {
	switch s {
	case StageReady:
		return "ready"
	case StageCrystallineAttempt:
		return "crystalline_attempt"
	case StageAccepted:
		return "accepted"
	case StageRejected:
		return "rejected"
	case StageIFSEncode:
		return "ifs_encode"
	case StagePackaged:
		return "packaged"
	default:
		return "unknown"
	}
}

// Observer is notified as a run enters each stage.
type Observer func(model string, s Stage)
