package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the differences between the supported SQL engines.
type Dialect struct {
	Name string
	// IDColumn is the column definition of an auto-assigned 64-bit key.
	IDColumn string
	// Numbered selects $1-style placeholders instead of ?.
	Numbered bool
}

// Supported dialects.
var (
	SQLite   = Dialect{Name: "sqlite", IDColumn: "INTEGER PRIMARY KEY AUTOINCREMENT"}
	Postgres = Dialect{Name: "postgres", IDColumn: "BIGSERIAL PRIMARY KEY", Numbered: true}
)

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS simulations (
	simulation_id {{id}},
	run_key TEXT NOT NULL UNIQUE,
	seed BIGINT NOT NULL,
	config TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('pending', 'running', 'completed', 'failed')),
	cycles INTEGER NOT NULL CHECK(cycles >= 0),
	cycles_completed INTEGER NOT NULL DEFAULT 0 CHECK(cycles_completed >= 0),
	initial_population INTEGER NOT NULL CHECK(initial_population >= 0),
	final_population INTEGER NOT NULL DEFAULT 0 CHECK(final_population >= 0)
);
CREATE INDEX IF NOT EXISTS idx_simulations_status ON simulations(status);
CREATE TABLE IF NOT EXISTS traits (
	simulation_id BIGINT NOT NULL REFERENCES simulations(simulation_id) ON DELETE CASCADE,
	trait_id INTEGER NOT NULL CHECK(trait_id >= 0 AND trait_id < 100),
	name TEXT NOT NULL,
	trait_type TEXT NOT NULL,
	PRIMARY KEY (simulation_id, trait_id)
);
CREATE TABLE IF NOT EXISTS genotypes (
	genotype_id {{id}},
	simulation_id BIGINT NOT NULL,
	trait_id INTEGER NOT NULL,
	genotype TEXT NOT NULL,
	phenotype TEXT NOT NULL,
	sex TEXT NOT NULL DEFAULT '',
	initial_freq DOUBLE PRECISION NOT NULL CHECK(initial_freq >= 0),
	FOREIGN KEY (simulation_id, trait_id) REFERENCES traits(simulation_id, trait_id) ON DELETE CASCADE,
	UNIQUE (simulation_id, trait_id, genotype, sex)
);
CREATE TABLE IF NOT EXISTS breeders (
	breeder_id {{id}},
	simulation_id BIGINT NOT NULL REFERENCES simulations(simulation_id) ON DELETE CASCADE,
	breeder_type TEXT NOT NULL,
	max_creatures INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS creatures (
	creature_id {{id}},
	simulation_id BIGINT NOT NULL REFERENCES simulations(simulation_id) ON DELETE CASCADE,
	birth_cycle INTEGER NOT NULL,
	sex TEXT NOT NULL CHECK(sex IN ('male', 'female')),
	parent1_id BIGINT NULL,
	parent2_id BIGINT NULL,
	breeder_id BIGINT NULL,
	produced_by_breeder_id BIGINT NULL,
	generation INTEGER NOT NULL CHECK(generation >= 0),
	inbreeding_coefficient DOUBLE PRECISION NOT NULL CHECK(inbreeding_coefficient >= 0 AND inbreeding_coefficient <= 1),
	lifespan INTEGER NOT NULL CHECK(lifespan > 0),
	conception_cycle INTEGER NULL,
	is_homed BOOLEAN NOT NULL DEFAULT FALSE,
	death_cycle INTEGER NULL,
	CHECK((generation = 0) = (parent1_id IS NULL)),
	CHECK((generation = 0) = (parent2_id IS NULL))
);
CREATE INDEX IF NOT EXISTS idx_creatures_simulation ON creatures(simulation_id);
CREATE TABLE IF NOT EXISTS creature_genotypes (
	creature_id BIGINT NOT NULL REFERENCES creatures(creature_id) ON DELETE CASCADE,
	trait_id INTEGER NOT NULL CHECK(trait_id >= 0),
	genotype TEXT NOT NULL,
	PRIMARY KEY (creature_id, trait_id)
);
CREATE TABLE IF NOT EXISTS creature_ownership_history (
	ownership_id {{id}},
	simulation_id BIGINT NOT NULL REFERENCES simulations(simulation_id) ON DELETE CASCADE,
	creature_id BIGINT NOT NULL REFERENCES creatures(creature_id) ON DELETE CASCADE,
	from_breeder_id BIGINT NULL,
	to_breeder_id BIGINT NOT NULL,
	transfer_generation INTEGER NOT NULL CHECK(transfer_generation >= 0),
	reason TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_creature_ownership_creature ON creature_ownership_history(creature_id);
CREATE TABLE IF NOT EXISTS generation_stats (
	simulation_id BIGINT NOT NULL REFERENCES simulations(simulation_id) ON DELETE CASCADE,
	generation INTEGER NOT NULL CHECK(generation >= 0),
	population_size INTEGER NOT NULL CHECK(population_size >= 0),
	eligible_males INTEGER NOT NULL CHECK(eligible_males >= 0),
	eligible_females INTEGER NOT NULL CHECK(eligible_females >= 0),
	births INTEGER NOT NULL CHECK(births >= 0),
	deaths INTEGER NOT NULL CHECK(deaths >= 0),
	homed_out INTEGER NOT NULL CHECK(homed_out >= 0),
	transfers INTEGER NOT NULL CHECK(transfers >= 0),
	PRIMARY KEY (simulation_id, generation)
);
CREATE TABLE IF NOT EXISTS generation_genotype_frequencies (
	simulation_id BIGINT NOT NULL,
	generation INTEGER NOT NULL,
	trait_id INTEGER NOT NULL,
	genotype TEXT NOT NULL,
	frequency DOUBLE PRECISION NOT NULL CHECK(frequency >= 0 AND frequency <= 1),
	FOREIGN KEY (simulation_id, generation) REFERENCES generation_stats(simulation_id, generation) ON DELETE CASCADE,
	PRIMARY KEY (simulation_id, generation, trait_id, genotype)
);
CREATE TABLE IF NOT EXISTS generation_trait_stats (
	simulation_id BIGINT NOT NULL,
	generation INTEGER NOT NULL,
	trait_id INTEGER NOT NULL,
	allele_frequencies TEXT NOT NULL,
	heterozygosity DOUBLE PRECISION NOT NULL CHECK(heterozygosity >= 0 AND heterozygosity <= 1),
	genotype_diversity INTEGER NOT NULL CHECK(genotype_diversity >= 0),
	FOREIGN KEY (simulation_id, generation) REFERENCES generation_stats(simulation_id, generation) ON DELETE CASCADE,
	PRIMARY KEY (simulation_id, generation, trait_id)
);
`

// Schema returns the DDL statements for the dialect in execution order.
func Schema(d Dialect) []string {
	ddl := strings.ReplaceAll(schemaTemplate, "{{id}}", d.IDColumn)
	var out []string
	for _, stmt := range strings.Split(ddl, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db execer, d Dialect) error {
	for _, stmt := range Schema(d) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}
