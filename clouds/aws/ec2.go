package aws

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"cloudwright/clouds"
	"cloudwright/internal/errors"
)

const ec2OfferPath = "/offers/v1.0/aws/AmazonEC2/current/%s/index.csv"

// FetchInstancePricing streams linux on-demand shared-tenancy instance
// prices for a region from the bulk CSV offer. Offer files open with
// metadata lines; real parsing starts at the header row, which begins
// with "SKU".
func (a *Adapter) FetchInstancePricing(ctx context.Context, region string, yield func(clouds.InstancePrice) error) error {
	url := a.baseURL + fmt.Sprintf(ec2OfferPath, region)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.AdapterHTTP("aws", url, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return errors.AdapterHTTP("aws", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.AdapterHTTP("aws", url, fmt.Errorf("status %d", resp.StatusCode))
	}

	emitted, err := a.streamOfferCSV(ctx, resp.Body, region, yield)
	if err != nil {
		return err
	}
	if emitted == 0 {
		a.log.Warn("ec2 offer csv contained no usable rows", zap.String("region", region))
		return errors.Parsing(fmt.Sprintf("aws ec2 offer for %s: no usable rows", region), nil)
	}
	a.log.Debug("streamed ec2 offer",
		zap.String("region", region),
		zap.Int("instances", emitted))
	return nil
}

func (a *Adapter) streamOfferCSV(ctx context.Context, r io.Reader, region string, yield func(clouds.InstancePrice) error) (int, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var header string
	for {
		line, err := br.ReadString('\n')
		if strings.HasPrefix(strings.TrimPrefix(strings.TrimSpace(line), `"`), "SKU") {
			header = line
			break
		}
		if err != nil {
			// Reached EOF without a header row.
			return 0, nil
		}
	}

	cr := csv.NewReader(io.MultiReader(strings.NewReader(header), br))
	cr.FieldsPerRecord = -1

	cols, err := cr.Read()
	if err != nil {
		return 0, errors.Parsing("reading ec2 offer header", err)
	}
	idx := make(map[string]int, len(cols))
	for i, name := range cols {
		idx[strings.TrimSpace(name)] = i
	}
	field := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	emitted := 0
	for {
		if err := ctx.Err(); err != nil {
			return emitted, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return emitted, errors.Parsing("reading ec2 offer row", err)
		}

		if field(rec, "TermType") != "OnDemand" {
			continue
		}
		if os := field(rec, "Operating System"); os != "Linux" && os != "" {
			continue
		}
		if field(rec, "Tenancy") != "Shared" {
			continue
		}
		// Offer revisions have used both spellings of the capacity header.
		capacity := field(rec, "CapacityStatus")
		if capacity == "" {
			capacity = field(rec, "Capacitystatus")
		}
		if capacity != "Used" {
			continue
		}
		if sw := field(rec, "Pre Installed S/W"); sw != "NA" && sw != "" {
			continue
		}
		family := field(rec, "Product Family")
		if family == "" {
			family = field(rec, "productFamily")
		}
		if family != "Compute Instance" {
			continue
		}
		price, err := strconv.ParseFloat(field(rec, "PricePerUnit"), 64)
		if err != nil || price <= 0 {
			continue
		}
		instanceType := field(rec, "Instance Type")
		if instanceType == "" {
			continue
		}

		vcpus, _ := strconv.Atoi(field(rec, "vCPU"))
		row := clouds.InstancePrice{
			InstanceType:     instanceType,
			Region:           region,
			VCPUs:            vcpus,
			MemoryGB:         parseMemoryGB(field(rec, "Memory")),
			PricePerHour:     price,
			PriceType:        "on_demand",
			OS:               "linux",
			StorageDesc:      field(rec, "Storage"),
			NetworkBandwidth: field(rec, "Network Performance"),
		}
		if err := yield(row); err != nil {
			return emitted, err
		}
		emitted++
	}
	return emitted, nil
}

// parseMemoryGB parses offer memory strings such as "8 GiB" or
// "512 MiB". Metal shapes carry thousands separators ("1,152 GiB").
func parseMemoryGB(s string) float64 {
	fields := strings.Fields(strings.ReplaceAll(s, ",", ""))
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	switch fields[1] {
	case "GiB":
		return v
	case "MiB":
		return v / 1024
	}
	return 0
}
