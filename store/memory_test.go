package store

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

func TestMemoryStores(t *testing.T) {
	suite.Run(t, &storeContractSuite{factory: func() backends {
		return backends{
			issues:   NewMemoryIssueStore(),
			users:    NewMemoryUserStore(),
			inbox:    NewMemoryNotificationStore(),
			requests: NewMemoryProfileRequestStore(),
		}
	}})
}
