package ncpdp

import (
	"fmt"
	"strings"

	"github.com/carevista/practicebackend/lib/mytime"
	"github.com/carevista/practicebackend/lib/myuuid"
)

// MessageIDGenerator mints message ids of the form
// {accountID}-{epochMillis}-{8 random hex chars}. The pharmacy network
// deduplicates on this id, so uniqueness per call is load-bearing.
type MessageIDGenerator struct {
	accountID string
	uuider    myuuid.UUIDer
	nower     mytime.Nower
}

func NewMessageIDGenerator(accountID string, uuider myuuid.UUIDer, nower mytime.Nower) MessageIDGenerator {
	return MessageIDGenerator{
		accountID: accountID,
		uuider:    uuider,
		nower:     nower,
	}
}

func (g MessageIDGenerator) Create() string {
	suffix := strings.ReplaceAll(g.uuider.Create(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", g.accountID, g.nower.Now().UnixMilli(), suffix)
}
