package memory

import (
	"testing"

	"github.com/nao1215/onionspider/internal/queue/queuetest"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(new(InMemoryQueueTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

// InMemoryQueueTestSuite runs the shared queue suite against Queue.
type InMemoryQueueTestSuite struct {
	queuetest.BaseSuite
}

// SetUpTest gives every test a fresh queue.
func (s *InMemoryQueueTestSuite) SetUpTest(_ *check.C) {
	s.SetQueue(NewQueue())
}
