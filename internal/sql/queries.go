package sql

import (
	"embed"
)

// Migrations holds the schema DDL, applied in filename order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/create_run.sql
var CreateRun string

//go:embed queries/finish_run.sql
var FinishRun string

//go:embed queries/latest_coefficients.sql
var LatestCoefficients string

//go:embed queries/run_scores.sql
var RunScores string
