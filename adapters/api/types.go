package api

import (
	"strings"

	"statcore/adapters/excel"
	"statcore/app"
	"statcore/domain/dataset"
	"statcore/internal/errors"
)

// DatasetPayload carries the observations of a request, either as rows or
// as CSV text with a header line.
type DatasetPayload struct {
	Dataset *dataset.Dataset `json:"dataset,omitempty"`
	CSV     string           `json:"csv,omitempty"`
}

func (p DatasetPayload) load() (*dataset.Dataset, error) {
	switch {
	case p.Dataset != nil && p.CSV != "":
		return nil, errors.InvalidInput("send either dataset or csv, not both")
	case p.Dataset != nil:
		return dataset.New(p.Dataset.Columns, p.Dataset.Rows), nil
	case p.CSV != "":
		raw, err := excel.ReadCSVData(strings.NewReader(p.CSV))
		if err != nil {
			return nil, err
		}
		return excel.ToDataset(raw, excel.DefaultReaderConfig()), nil
	}
	return nil, errors.InvalidInput("dataset or csv is required")
}

type DescriptivesBody struct {
	DatasetPayload
	app.DescriptivesRequest
}

type IndependentBody struct {
	DatasetPayload
	app.IndependentRequest
}

type RepeatedBody struct {
	DatasetPayload
	app.RepeatedRequest
}

type BatchBody struct {
	DatasetPayload
	app.BatchRequest
}

type TwoWayBody struct {
	DatasetPayload
	app.TwoWayRequest
}

type TTestBody struct {
	DatasetPayload
	app.TTestRequest
}

type FactorBody struct {
	DatasetPayload
	app.FactorRequest
}

type RegressionBody struct {
	DatasetPayload
	app.RegressionRequest
}

// ErrorBody is the shape of every non-2xx response
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
