package main

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/srg/antscope/internal/testutils"
	"github.com/srg/antscope/internal/transport"
	"github.com/stretchr/testify/suite"
)

// Test identities shared by the command suites
var (
	testHeartRateID = transport.ChannelID{DeviceNumber: 4660, DeviceType: 120, TransmissionType: 1}
	testPowerID     = transport.ChannelID{DeviceNumber: 66, DeviceType: 11, TransmissionType: 5}
)

const (
	testHeartRatePage1 = "00 FF FF FF 00 04 05 48"
	testHeartRatePage2 = "00 FF FF FF 00 08 06 49"
	testPowerOnlyPage  = "10 01 32 5A 64 00 C8 00"
)

// CommandTestSuite provides command testing utilities.
// All cmd/antscope test suites should embed it.
type CommandTestSuite struct {
	suite.Suite

	Helper *testutils.TestHelper
}

func (s *CommandTestSuite) SetupSuite() {
	s.Helper = testutils.NewTestHelper(s.T())
}

// ExecuteCommand runs a fresh command tree with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// SessionCapture returns a capture with one heart rate monitor and one power meter.
func (s *CommandTestSuite) SessionCapture() *testutils.CaptureBuilder {
	return testutils.NewCaptureBuilder().
		WithName("session").
		WithDevice(testHeartRateID).
		WithPages(testHeartRatePage1, testHeartRatePage2).
		WithDevice(testPowerID).
		WithPages(testPowerOnlyPage)
}

// WriteConfig writes a YAML configuration file and returns its path.
func (s *CommandTestSuite) WriteConfig(content string) string {
	path := filepath.Join(s.T().TempDir(), "antscope.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600), "config MUST be written")
	return path
}
