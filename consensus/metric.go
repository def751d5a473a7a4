package consensus

import (
	"sync"

	jsoniter "github.com/json-iterator/go"
)

func newRoundMetric() *roundMetric {
	return &roundMetric{}
}

// roundMetric is the consensus entry of the node status registry.
type roundMetric struct {
	mtx sync.Mutex

	Height           uint64 `json:"height"`
	Phase            string `json:"phase"`
	IsLeader         bool   `json:"is_leader"`
	LeaderAddress    string `json:"leader_address"`
	PreProposalsSeen int    `json:"pre_proposals_seen"`
	CommitsSeen      int    `json:"commits_seen"`
	ProposalReceived bool   `json:"proposal_received"`
	Submitted        bool   `json:"submitted"`
	Violations       int    `json:"violations"`
}

func (rm *roundMetric) JSONString() string {
	rm.mtx.Lock()
	defer rm.mtx.Unlock()
	s, _ := jsoniter.MarshalToString(rm)
	return s
}

func (rm *roundMetric) MarkHeight(height uint64) {
	rm.mtx.Lock()
	defer rm.mtx.Unlock()
	rm.Height = height
	rm.PreProposalsSeen = 0
	rm.CommitsSeen = 0
	rm.ProposalReceived = false
	rm.Submitted = false
}

func (rm *roundMetric) MarkPhase(phase string) {
	rm.mtx.Lock()
	defer rm.mtx.Unlock()
	rm.Phase = phase
}

func (rm *roundMetric) MarkIsLeader(v bool) {
	rm.mtx.Lock()
	defer rm.mtx.Unlock()
	rm.IsLeader = v
}

func (rm *roundMetric) MarkLeaderAddr(addr string) {
	rm.mtx.Lock()
	defer rm.mtx.Unlock()
	rm.LeaderAddress = addr
}

func (rm *roundMetric) MarkPreProposalsSeen(n int) {
	rm.mtx.Lock()
	defer rm.mtx.Unlock()
	rm.PreProposalsSeen = n
}

func (rm *roundMetric) MarkCommitsSeen(n int) {
	rm.mtx.Lock()
	defer rm.mtx.Unlock()
	rm.CommitsSeen = n
}

func (rm *roundMetric) MarkProposalReceived(v bool) {
	rm.mtx.Lock()
	defer rm.mtx.Unlock()
	rm.ProposalReceived = v
}

func (rm *roundMetric) MarkSubmitted(v bool) {
	rm.mtx.Lock()
	defer rm.mtx.Unlock()
	rm.Submitted = v
}

func (rm *roundMetric) MarkViolation() {
	rm.mtx.Lock()
	defer rm.mtx.Unlock()
	rm.Violations++
}
