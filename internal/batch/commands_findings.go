package batch

import (
	"context"
	"database/sql"
	"strings"

	"cortexstore/internal/model"
)

// InsertTaintFlows bulk-inserts source→sink taint paths.
func InsertTaintFlows(rows []model.TaintFlow) BatchCommand {
	return &command{
		variant: "InsertTaintFlows",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO taint_flows (id, source_function_id, sink_function_id, field)
				VALUES (?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.SourceFunctionID, r.SinkFunctionID, r.Field}
			})
		},
	}
}

// InsertErrorGaps bulk-inserts inadequate-error-handling findings.
func InsertErrorGaps(rows []model.ErrorGap) BatchCommand {
	return &command{
		variant: "InsertErrorGaps",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO error_gaps (id, function_id, description)
				VALUES (?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.FunctionID, r.Description}
			})
		},
	}
}

// InsertImpactScores bulk-upserts blast-radius/risk scores.
func InsertImpactScores(rows []model.ImpactScore) BatchCommand {
	return &command{
		variant: "InsertImpactScores",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT INTO impact_scores (function_id, score) VALUES (?, ?)
				ON CONFLICT(function_id) DO UPDATE SET score=excluded.score
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.FunctionID, r.Score}
			})
		},
	}
}

// InsertTestQuality bulk-upserts per-file test-quality scores.
func InsertTestQuality(rows []model.TestQualityScore) BatchCommand {
	return &command{
		variant: "InsertTestQuality",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT INTO test_quality_scores (file, coverage, assertions, flaky) VALUES (?, ?, ?, ?)
				ON CONFLICT(file) DO UPDATE SET coverage=excluded.coverage, assertions=excluded.assertions, flaky=excluded.flaky
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.File, r.Coverage, r.Assertions, boolInt(r.Flaky)}
			})
		},
	}
}

// InsertCouplingMetrics bulk-upserts pairwise module coupling scores.
func InsertCouplingMetrics(rows []model.CouplingMetric) BatchCommand {
	return &command{
		variant: "InsertCouplingMetrics",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT INTO coupling_metrics (module_a, module_b, score) VALUES (?, ?, ?)
				ON CONFLICT(module_a, module_b) DO UPDATE SET score=excluded.score
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ModuleA, r.ModuleB, r.Score}
			})
		},
	}
}

// InsertCouplingCycles bulk-inserts detected module dependency cycles.
func InsertCouplingCycles(rows []model.CouplingCycle) BatchCommand {
	return &command{
		variant: "InsertCouplingCycles",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO coupling_cycles (id, modules) VALUES (?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, strings.Join(r.Modules, ",")}
			})
		},
	}
}

// InsertOutliers bulk-inserts statistical outlier findings.
func InsertOutliers(rows []model.Outlier) BatchCommand {
	return &command{
		variant: "InsertOutliers",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO outliers (id, metric, subject, value) VALUES (?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.Metric, r.Subject, r.Value}
			})
		},
	}
}

// InsertConventions bulk-inserts detected repository conventions.
func InsertConventions(rows []model.Convention) BatchCommand {
	return &command{
		variant: "InsertConventions",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO conventions (id, name, description) VALUES (?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.Name, r.Description}
			})
		},
	}
}

// InsertWrappers bulk-inserts thin pass-through wrapper functions.
func InsertWrappers(rows []model.Wrapper) BatchCommand {
	return &command{
		variant: "InsertWrappers",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO wrappers (id, function_id, wrapped_id) VALUES (?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.FunctionID, r.WrappedID}
			})
		},
	}
}

// InsertCryptoFindings bulk-inserts weak-cryptography findings.
func InsertCryptoFindings(rows []model.CryptoFinding) BatchCommand {
	return &command{
		variant: "InsertCryptoFindings",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO crypto_findings (id, algorithm, file, line, severity) VALUES (?, ?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.Algorithm, r.File, r.Line, string(r.Severity)}
			})
		},
	}
}

// InsertDnaGenes bulk-inserts structural-DNA fingerprint loci.
func InsertDnaGenes(rows []model.DnaGene) BatchCommand {
	return &command{
		variant: "InsertDnaGenes",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO dna_genes (id, locus, sequence) VALUES (?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.Locus, r.Sequence}
			})
		},
	}
}

// InsertDnaMutations bulk-inserts detected drift from a DnaGene baseline.
func InsertDnaMutations(rows []model.DnaMutation) BatchCommand {
	return &command{
		variant: "InsertDnaMutations",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO dna_mutations (id, gene_id, file, detected_at) VALUES (?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.GeneID, r.File, r.DetectedAt}
			})
		},
	}
}

// InsertSecrets bulk-inserts detected credential-shaped literals.
func InsertSecrets(rows []model.Secret) BatchCommand {
	return &command{
		variant: "InsertSecrets",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO secrets (id, file, line, kind, redacted) VALUES (?, ?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.File, r.Line, r.Kind, r.Redacted}
			})
		},
	}
}

// InsertConstants bulk-inserts named literals tracked for drift analysis.
func InsertConstants(rows []model.Constant) BatchCommand {
	return &command{
		variant: "InsertConstants",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO constants (id, file, name, value) VALUES (?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.File, r.Name, r.Value}
			})
		},
	}
}

// InsertEnvVariables bulk-inserts environment-variable references.
func InsertEnvVariables(rows []model.EnvVariableRef) BatchCommand {
	return &command{
		variant: "InsertEnvVariables",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO env_variables (id, file, line, name) VALUES (?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.File, r.Line, r.Name}
			})
		},
	}
}

// InsertOwaspFindings bulk-inserts OWASP-category findings.
func InsertOwaspFindings(rows []model.OwaspFinding) BatchCommand {
	return &command{
		variant: "InsertOwaspFindings",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO owasp_findings (id, category, file, line, severity) VALUES (?, ?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.Category, r.File, r.Line, string(r.Severity)}
			})
		},
	}
}

// InsertDecompositionDecisions bulk-inserts chosen module-split decisions.
func InsertDecompositionDecisions(rows []model.DecompositionDecision) BatchCommand {
	return &command{
		variant: "InsertDecompositionDecisions",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO decomposition_decisions (id, module, decision, reason) VALUES (?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.Module, r.Decision, r.Reason}
			})
		},
	}
}

// InsertContracts bulk-inserts declared interface/shape boundaries.
func InsertContracts(rows []model.Contract) BatchCommand {
	return &command{
		variant: "InsertContracts",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO contracts (id, name, file) VALUES (?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.Name, r.File}
			})
		},
	}
}

// InsertContractMismatches bulk-inserts contract-violation findings.
func InsertContractMismatches(rows []model.ContractMismatch) BatchCommand {
	return &command{
		variant: "InsertContractMismatches",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO contract_mismatches (id, contract_id, file, line, reason) VALUES (?, ?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.ContractID, r.File, r.Line, r.Reason}
			})
		},
	}
}

// InsertParseCache bulk-upserts the last-successful-parse cache.
func InsertParseCache(rows []model.ParseCacheEntry) BatchCommand {
	return &command{
		variant: "InsertParseCache",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT INTO parse_cache (file, content_hash, parsed_at) VALUES (?, ?, ?)
				ON CONFLICT(file) DO UPDATE SET content_hash=excluded.content_hash, parsed_at=excluded.parsed_at
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.File, r.ContentHash, r.ParsedAt}
			})
		},
	}
}
