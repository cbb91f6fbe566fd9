package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// STSClient identifies the caller behind a profile.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// EC2RegionClient lists the account's enabled regions for doctor.
type EC2RegionClient interface {
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// IAMRoleClient reads the audit role and its trust policy.
type IAMRoleClient interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
}

// S3PutClient uploads archived audit jobs.
type S3PutClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ClientSet is the service clients bound to one profile and region. Every
// field is an interface so tests can substitute fakes.
type ClientSet struct {
	STS STSClient
	EC2 EC2RegionClient
	IAM IAMRoleClient
	S3  S3PutClient
}

// ClientFactory builds a ClientSet from a loaded SDK config.
type ClientFactory func(cfg aws.Config) *ClientSet

// NewClientSet is the ClientFactory used outside tests.
func NewClientSet(cfg aws.Config) *ClientSet {
	return &ClientSet{
		STS: sts.NewFromConfig(cfg),
		EC2: ec2.NewFromConfig(cfg),
		IAM: iam.NewFromConfig(cfg),
		S3:  s3.NewFromConfig(cfg),
	}
}
