package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// ProfileConfig is a resolved AWS profile with its SDK configuration and
// initialised service clients. It is the unit passed to the trust preflight,
// the archiver and the doctor command.
type ProfileConfig struct {
	// ProfileName is the name from ~/.aws/credentials or "default".
	ProfileName string

	// AccountID is the resolved AWS account ID for this profile (via STS).
	AccountID string

	// Region is the home region for this profile configuration.
	Region string

	// Config is the fully loaded AWS SDK v2 configuration.
	Config aws.Config

	// Clients holds initialised service clients scoped to this profile's
	// home region.
	Clients *ClientSet
}

// AWSClientProvider loads AWS configurations and resolves active regions.
// It is the sole entry point for AWS credential management in cdaudit.
//
// Implementations must use the AWS SDK v2 only. Never call the aws CLI.
type AWSClientProvider interface {
	// LoadProfile returns a ProfileConfig for the named profile.
	// Pass an empty string to load the default profile. A non-empty region
	// overrides the profile's region.
	LoadProfile(ctx context.Context, profile, region string) (*ProfileConfig, error)

	// ListProfiles returns the profile names found in ~/.aws/credentials
	// and ~/.aws/config.
	ListProfiles() ([]string, error)

	// GetActiveRegions returns all regions that are enabled for the account
	// associated with cfg.
	GetActiveRegions(ctx context.Context, cfg *ProfileConfig) ([]string, error)
}
