package aws

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cloudwright/clouds"
)

const (
	lambdaOfferPath = "/offers/v1.0/aws/AWSLambda/current/%s/index.json"
	s3OfferPath     = "/offers/v1.0/aws/AmazonS3/current/index.json"
	rdsOfferPath    = "/offers/v1.0/aws/AmazonRDS/current/%s/index.json"
	dynamoOfferPath = "/offers/v1.0/aws/AmazonDynamoDB/current/%s/index.json"
)

// fetchLambda emits the request and duration tiers. Request pricing is
// scaled to per-million; duration pricing to an hourly GB-second
// equivalent.
func (a *Adapter) fetchLambda(ctx context.Context, region string) ([]clouds.ManagedServicePrice, error) {
	offer, err := a.fetchOffer(ctx, fmt.Sprintf(lambdaOfferPath, region))
	if err != nil {
		return nil, err
	}

	var tiers []clouds.ManagedServicePrice
	for _, sku := range sortedSKUs(offer.Products) {
		price, ok := offer.onDemandUSD(sku)
		if !ok {
			continue
		}
		switch offer.Products[sku].Attributes["group"] {
		case "AWS-Lambda-Requests":
			perMillion := price * 1e6
			tiers = append(tiers, clouds.ManagedServicePrice{
				Service:       "lambda",
				TierName:      "per_request",
				PricePerMonth: clouds.Monthly(perMillion),
				Description:   "Lambda requests, USD per million",
				Notes:         map[string]interface{}{"price_per_million": perMillion},
			})
		case "AWS-Lambda-Duration":
			tiers = append(tiers, clouds.ManagedServicePrice{
				Service:      "lambda",
				TierName:     "per_gb_second",
				PricePerHour: clouds.Hourly(price * 3600),
				Description:  "Lambda duration, GB-second scaled to an hour",
				Notes:        map[string]interface{}{"per_gb_second": price},
			})
		}
	}
	return tiers, nil
}

// fetchS3 reads the global S3 offer and keeps General Purpose Standard
// storage rows for the requested region's location
func (a *Adapter) fetchS3(ctx context.Context, region string) ([]clouds.ManagedServicePrice, error) {
	offer, err := a.fetchOffer(ctx, s3OfferPath)
	if err != nil {
		return nil, err
	}

	location := awsLocation(region)
	var tiers []clouds.ManagedServicePrice
	for _, sku := range sortedSKUs(offer.Products) {
		attrs := offer.Products[sku].Attributes
		if attrs["storageClass"] != "General Purpose" || attrs["volumeType"] != "Standard" {
			continue
		}
		if attrs["location"] != location {
			continue
		}
		rate, ok := offer.onDemandUSD(sku)
		if !ok {
			continue
		}
		tiers = append(tiers, clouds.ManagedServicePrice{
			Service:       "s3",
			TierName:      "standard",
			PricePerMonth: clouds.Monthly(rate),
			Description:   "S3 Standard storage, USD per GB-month",
			Notes:         map[string]interface{}{"per_gb_month": rate},
		})
	}
	return tiers, nil
}

// fetchRDS keeps Single-AZ PostgreSQL and MySQL instance classes from
// the region offer
func (a *Adapter) fetchRDS(ctx context.Context, region string) ([]clouds.ManagedServicePrice, error) {
	offer, err := a.fetchOffer(ctx, fmt.Sprintf(rdsOfferPath, region))
	if err != nil {
		return nil, err
	}

	var tiers []clouds.ManagedServicePrice
	for _, sku := range sortedSKUs(offer.Products) {
		attrs := offer.Products[sku].Attributes
		engine := attrs["databaseEngine"]
		if engine != "PostgreSQL" && engine != "MySQL" {
			continue
		}
		if attrs["deploymentOption"] != "Single-AZ" {
			continue
		}
		class := attrs["instanceType"]
		if class == "" {
			continue
		}
		hourly, ok := offer.onDemandUSD(sku)
		if !ok {
			continue
		}
		vcpus, _ := strconv.Atoi(attrs["vcpu"])
		tiers = append(tiers, clouds.ManagedServicePrice{
			Service:       "rds",
			TierName:      class,
			PricePerHour:  clouds.Hourly(hourly),
			PricePerMonth: clouds.Monthly(hourly * hoursPerMonth),
			VCPUs:         vcpus,
			MemoryGB:      parseMemoryGB(attrs["memory"]),
			Description:   fmt.Sprintf("RDS %s %s Single-AZ", engine, class),
			Notes:         map[string]interface{}{"engine": strings.ToLower(engine)},
		})
	}
	return tiers, nil
}

// fetchDynamoDB emits provisioned read and write request-unit rates
// scaled to per-million
func (a *Adapter) fetchDynamoDB(ctx context.Context, region string) ([]clouds.ManagedServicePrice, error) {
	offer, err := a.fetchOffer(ctx, fmt.Sprintf(dynamoOfferPath, region))
	if err != nil {
		return nil, err
	}

	var tiers []clouds.ManagedServicePrice
	for _, sku := range sortedSKUs(offer.Products) {
		var tierName, desc string
		switch offer.Products[sku].Attributes["group"] {
		case "DDB-ReadUnits":
			tierName = "read_request_units"
			desc = "DynamoDB read request units, USD per million"
		case "DDB-WriteUnits":
			tierName = "write_request_units"
			desc = "DynamoDB write request units, USD per million"
		default:
			continue
		}
		price, ok := offer.onDemandUSD(sku)
		if !ok {
			continue
		}
		perMillion := price * 1e6
		tiers = append(tiers, clouds.ManagedServicePrice{
			Service:       "dynamodb",
			TierName:      tierName,
			PricePerMonth: clouds.Monthly(perMillion),
			Description:   desc,
			Notes:         map[string]interface{}{"price_per_million": perMillion},
		})
	}
	return tiers, nil
}
