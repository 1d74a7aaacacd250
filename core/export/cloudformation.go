package export

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"cloudwright/core/spec"
	"cloudwright/internal/errors"
)

// cloudFormationTypes maps AWS service keys to CloudFormation resource
// types. Keys without an entry land in Metadata.unsupported.
var cloudFormationTypes = map[string]string{
	"alb":             "AWS::ElasticLoadBalancingV2::LoadBalancer",
	"api_gateway":     "AWS::ApiGateway::RestApi",
	"athena":          "AWS::Athena::WorkGroup",
	"aurora":          "AWS::RDS::DBCluster",
	"cloudfront":      "AWS::CloudFront::Distribution",
	"cloudtrail":      "AWS::CloudTrail::Trail",
	"cloudwatch":      "AWS::CloudWatch::Alarm",
	"codepipeline":    "AWS::CodePipeline::Pipeline",
	"cognito":         "AWS::Cognito::UserPool",
	"dynamodb":        "AWS::DynamoDB::Table",
	"ebs":             "AWS::EC2::Volume",
	"ec2":             "AWS::EC2::Instance",
	"ecr":             "AWS::ECR::Repository",
	"ecs":             "AWS::ECS::Cluster",
	"efs":             "AWS::EFS::FileSystem",
	"eks":             "AWS::EKS::Cluster",
	"elasticache":     "AWS::ElastiCache::CacheCluster",
	"iam":             "AWS::IAM::Role",
	"kinesis":         "AWS::Kinesis::Stream",
	"kms":             "AWS::KMS::Key",
	"lambda":          "AWS::Lambda::Function",
	"msk":             "AWS::MSK::Cluster",
	"nat_gateway":     "AWS::EC2::NatGateway",
	"nlb":             "AWS::ElasticLoadBalancingV2::LoadBalancer",
	"rds":             "AWS::RDS::DBInstance",
	"redshift":        "AWS::Redshift::Cluster",
	"route53":         "AWS::Route53::HostedZone",
	"s3":              "AWS::S3::Bucket",
	"sagemaker":       "AWS::SageMaker::NotebookInstance",
	"secrets_manager": "AWS::SecretsManager::Secret",
	"sns":             "AWS::SNS::Topic",
	"sqs":             "AWS::SQS::Queue",
	"step_functions":  "AWS::StepFunctions::StateMachine",
	"vpc":             "AWS::EC2::VPC",
	"waf":             "AWS::WAFv2::WebACL",
}

type cfTemplate struct {
	FormatVersion string                `json:"AWSTemplateFormatVersion"`
	Description   string                `json:"Description,omitempty"`
	Metadata      *cfMetadata           `json:"Metadata,omitempty"`
	Resources     map[string]cfResource `json:"Resources"`
}

type cfMetadata struct {
	Unsupported []string `json:"unsupported"`
}

type cfResource struct {
	Type       string      `json:"Type"`
	Properties spec.Config `json:"Properties,omitempty"`
	DependsOn  []string    `json:"DependsOn,omitempty"`
}

// CloudFormation renders the AWS components as a CloudFormation JSON
// template. Non-AWS components and services without a template type
// are listed under Metadata.unsupported rather than dropped silently.
// Connections between templated resources become DependsOn entries.
func (r *Renderer) CloudFormation(s *spec.ArchSpec) (string, error) {
	tpl := cfTemplate{
		FormatVersion: "2010-09-09",
		Description:   s.Name,
		Resources:     make(map[string]cfResource, len(s.Components)),
	}

	logical := make(map[string]string, len(s.Components))
	taken := make(map[string]bool, len(s.Components))
	var unsupported []string
	for _, c := range s.Components {
		if c.Provider != spec.ProviderAWS {
			unsupported = append(unsupported,
				fmt.Sprintf("%s: service %q on %s", c.ID, c.Service, c.Provider))
			continue
		}
		cfType, ok := cloudFormationTypes[c.Service]
		if !ok {
			unsupported = append(unsupported,
				fmt.Sprintf("%s: no CloudFormation type for service %q", c.ID, c.Service))
			continue
		}
		logical[c.ID] = uniqueLogicalID(c.ID, taken)
		tpl.Resources[logical[c.ID]] = cfResource{Type: cfType, Properties: c.Config}
	}

	for _, conn := range s.Connections {
		src, okSrc := logical[conn.Source]
		dst, okDst := logical[conn.Target]
		if !okSrc || !okDst || src == dst {
			continue
		}
		res := tpl.Resources[src]
		if !slices.Contains(res.DependsOn, dst) {
			res.DependsOn = append(res.DependsOn, dst)
			tpl.Resources[src] = res
		}
	}

	if len(unsupported) > 0 {
		tpl.Metadata = &cfMetadata{Unsupported: unsupported}
	}

	out, err := json.MarshalIndent(tpl, "", "  ")
	if err != nil {
		return "", errors.Internal("encode cloudformation template", err)
	}
	return string(out) + "\n", nil
}

// logicalID converts an IaC-safe id into the alphanumeric form
// CloudFormation requires
func logicalID(id string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range id {
		if r == '_' || r == '-' {
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "Resource"
	}
	return b.String()
}

// uniqueLogicalID resolves collisions ("web-app" and "web_app" both
// camel to WebApp) with a numeric suffix
func uniqueLogicalID(id string, taken map[string]bool) string {
	base := logicalID(id)
	candidate := base
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s%d", base, n)
	}
	taken[candidate] = true
	return candidate
}
