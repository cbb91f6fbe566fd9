package common

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// fallbackRegion is used when neither the flag nor the profile names a region.
// IAM and STS are global, so any valid region works for the preflight.
const fallbackRegion = "us-east-1"

// DefaultAWSClientProvider resolves profiles from the shared AWS config files
// through the SDK's default credential chain.
type DefaultAWSClientProvider struct {
	factory    ClientFactory
	loadConfig func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error)
	homeDir    func() (string, error)
}

// NewDefaultAWSClientProvider returns a provider backed by the real AWS SDK.
func NewDefaultAWSClientProvider() *DefaultAWSClientProvider {
	return NewDefaultAWSClientProviderWithFactory(NewClientSet)
}

// NewDefaultAWSClientProviderWithFactory returns a provider whose clients
// come from f.
func NewDefaultAWSClientProviderWithFactory(f ClientFactory) *DefaultAWSClientProvider {
	return &DefaultAWSClientProvider{
		factory:    f,
		loadConfig: awsconfig.LoadDefaultConfig,
		homeDir:    os.UserHomeDir,
	}
}

// LoadProfile resolves profile ("" for the default chain), pins region when
// given and identifies the caller's account with STS.
func (p *DefaultAWSClientProvider) LoadProfile(ctx context.Context, profile, region string) (*ProfileConfig, error) {
	name := profile
	if name == "" {
		name = "default"
	}

	var opts []func(*awsconfig.LoadOptions) error
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := p.loadConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS profile %q: %w", name, err)
	}
	if cfg.Region == "" {
		cfg.Region = fallbackRegion
	}

	clients := p.factory(cfg)
	ident, err := clients.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("identify caller for profile %q: %w", name, err)
	}
	if aws.ToString(ident.Account) == "" {
		return nil, fmt.Errorf("identify caller for profile %q: STS returned no account", name)
	}

	return &ProfileConfig{
		ProfileName: name,
		AccountID:   aws.ToString(ident.Account),
		Region:      cfg.Region,
		Config:      cfg,
		Clients:     clients,
	}, nil
}

// ListProfiles returns the profile names declared in ~/.aws/credentials
// followed by those only in ~/.aws/config.
func (p *DefaultAWSClientProvider) ListProfiles() ([]string, error) {
	home, err := p.homeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	seen := make(map[string]struct{})
	var names []string
	for _, file := range []string{"credentials", "config"} {
		found, err := profileSections(filepath.Join(home, ".aws", file))
		if err != nil {
			return nil, err
		}
		for _, n := range found {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	return names, nil
}

// GetActiveRegions lists the regions the account has opted into.
func (p *DefaultAWSClientProvider) GetActiveRegions(ctx context.Context, cfg *ProfileConfig) ([]string, error) {
	out, err := cfg.Clients.EC2.DescribeRegions(ctx, &ec2.DescribeRegionsInput{AllRegions: aws.Bool(false)})
	if err != nil {
		return nil, fmt.Errorf("describe regions for profile %q: %w", cfg.ProfileName, err)
	}

	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		if name := aws.ToString(r.RegionName); name != "" {
			regions = append(regions, name)
		}
	}
	return regions, nil
}

// profileSections extracts profile names from the INI section headers of an
// AWS shared file. A missing file has no profiles.
func profileSections(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if name, ok := sectionProfile(sc.Text()); ok {
			names = append(names, name)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return names, nil
}

// sectionProfile maps "[prod]" and "[profile prod]" to "prod". Other
// section kinds (sso-session, services) are not profiles.
func sectionProfile(line string) (string, bool) {
	line = strings.TrimSpace(line)
	inner, ok := strings.CutPrefix(line, "[")
	if !ok {
		return "", false
	}
	inner, ok = strings.CutSuffix(inner, "]")
	if !ok {
		return "", false
	}
	fields := strings.Fields(inner)
	switch {
	case len(fields) == 1:
		return fields[0], true
	case len(fields) == 2 && fields[0] == "profile":
		return fields[1], true
	}
	return "", false
}
