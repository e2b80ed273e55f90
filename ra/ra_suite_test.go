package ra_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRA(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ra Suite")
}
