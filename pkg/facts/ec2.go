package facts

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/ec2metadata"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/pkg/errors"
)

const ec2MetadataTimeout = 2 * time.Second

// EC2 reports the instance identity document from the EC2 instance metadata
// service.
type EC2 struct {
	// Endpoint overrides the metadata service endpoint.
	Endpoint string
}

func (EC2) Name() string { return "ec2" }

func (e EC2) Collect(ctx context.Context) (Facts, error) {
	cfg := aws.NewConfig().
		WithHTTPClient(&http.Client{Timeout: ec2MetadataTimeout}).
		WithMaxRetries(0)
	if e.Endpoint != "" {
		cfg = cfg.WithEndpoint(e.Endpoint)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create aws session")
	}
	md := ec2metadata.New(sess)
	if !md.AvailableWithContext(ctx) {
		return nil, errors.New("ec2 instance metadata service is not available")
	}

	doc, err := md.GetInstanceIdentityDocumentWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to fetch instance identity document")
	}
	facts := Facts{
		"ec2_instance_id":       doc.InstanceID,
		"ec2_instance_type":     doc.InstanceType,
		"ec2_region":            doc.Region,
		"ec2_availability_zone": doc.AvailabilityZone,
		"ec2_account_id":        doc.AccountID,
		"ec2_ami_id":            doc.ImageID,
		"ec2_local_ipv4":        doc.PrivateIP,
	}
	if host, err := md.GetMetadataWithContext(ctx, "local-hostname"); err == nil {
		facts["ec2_local_hostname"] = host
	}
	return facts, nil
}
