// Package sqlstore implements the simulation store over database/sql with a
// normalized relational schema shared by the sqlite and postgres backends.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"genesim/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store persists simulation records to a relational database.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New migrates db and wraps it. The store takes ownership of db.
func New(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	if err := Migrate(ctx, db, d); err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: d}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the SQL dialect in use.
func (s *Store) Dialect() Dialect { return s.dialect }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) insertID(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, s.dialect.Rebind(query), args...).Scan(&id)
	return id, err
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// mustAffect maps a zero-row update to domain.ErrNotFound.
func mustAffect(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// CreateSimulation stores a run header and returns its id.
func (s *Store) CreateSimulation(ctx context.Context, sim domain.SimulationRecord) (int64, error) {
	if sim.Status == "" {
		sim.Status = domain.StatusPending
	}
	id, err := s.insertID(ctx, s.db, `INSERT INTO simulations (run_key, seed, config, status, cycles, initial_population)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING simulation_id`,
		sim.RunKey, int64(sim.Seed), sim.ConfigYAML, string(sim.Status), sim.Cycles, sim.InitialPopulation)
	if err != nil {
		return 0, fmt.Errorf("insert simulation: %w", err)
	}
	return id, nil
}

// GetSimulation returns a run header.
func (s *Store) GetSimulation(ctx context.Context, simulationID int64) (domain.SimulationRecord, error) {
	var (
		sim    domain.SimulationRecord
		seed   int64
		status string
	)
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(`SELECT simulation_id, run_key, seed, config, status, cycles, cycles_completed, initial_population, final_population
		FROM simulations WHERE simulation_id = ?`), simulationID).
		Scan(&sim.ID, &sim.RunKey, &seed, &sim.ConfigYAML, &status, &sim.Cycles, &sim.CyclesCompleted, &sim.InitialPopulation, &sim.FinalPopulation)
	if errors.Is(err, sql.ErrNoRows) {
		return sim, fmt.Errorf("simulation %d: %w", simulationID, domain.ErrNotFound)
	}
	if err != nil {
		return sim, fmt.Errorf("select simulation: %w", err)
	}
	sim.Seed = uint64(seed)
	sim.Status = domain.SimulationStatus(status)
	return sim, nil
}

// UpdateSimulationProgress records completed cycles and marks the run running.
func (s *Store) UpdateSimulationProgress(ctx context.Context, simulationID int64, cyclesCompleted int) error {
	res, err := s.exec(ctx, s.db, `UPDATE simulations SET status = ?, cycles_completed = ? WHERE simulation_id = ?`,
		string(domain.StatusRunning), cyclesCompleted, simulationID)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return mustAffect(res, "simulation", simulationID)
}

// FinishSimulation sets the terminal status.
func (s *Store) FinishSimulation(ctx context.Context, simulationID int64, status domain.SimulationStatus, finalPopulation int) error {
	res, err := s.exec(ctx, s.db, `UPDATE simulations SET status = ?, final_population = ? WHERE simulation_id = ?`,
		string(status), finalPopulation, simulationID)
	if err != nil {
		return fmt.Errorf("finish simulation: %w", err)
	}
	return mustAffect(res, "simulation", simulationID)
}

// CreateTraits stores the trait catalog and its genotype table.
func (s *Store) CreateTraits(ctx context.Context, simulationID int64, traits []domain.Trait) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, t := range traits {
			if _, err := s.exec(ctx, tx, `INSERT INTO traits (simulation_id, trait_id, name, trait_type) VALUES (?, ?, ?, ?)`,
				simulationID, t.ID, t.Name, string(t.Type)); err != nil {
				return fmt.Errorf("insert trait %d: %w", t.ID, err)
			}
			for _, g := range t.Genotypes {
				if _, err := s.exec(ctx, tx, `INSERT INTO genotypes (simulation_id, trait_id, genotype, phenotype, sex, initial_freq) VALUES (?, ?, ?, ?, ?, ?)`,
					simulationID, t.ID, g.Genotype, g.Phenotype, string(g.Sex), g.InitialFrequency); err != nil {
					return fmt.Errorf("insert genotype %s of trait %d: %w", g.Genotype, t.ID, err)
				}
			}
		}
		return nil
	})
}

// CreateBreeder stores a breeder and returns its id.
func (s *Store) CreateBreeder(ctx context.Context, simulationID int64, spec domain.BreederSpec) (int64, error) {
	id, err := s.insertID(ctx, s.db, `INSERT INTO breeders (simulation_id, breeder_type, max_creatures) VALUES (?, ?, ?) RETURNING breeder_id`,
		simulationID, string(spec.Variant), spec.MaxCreatures)
	if err != nil {
		return 0, fmt.Errorf("insert breeder: %w", err)
	}
	return id, nil
}

// CreateIndividual stores an individual and its genotypes and returns its id.
// Both parents, when set, must already exist.
func (s *Store) CreateIndividual(ctx context.Context, rec domain.IndividualRecord) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, parent := range []int64{rec.Parent1ID, rec.Parent2ID} {
			if parent == 0 {
				continue
			}
			var n int
			if err := tx.QueryRowContext(ctx, s.dialect.Rebind(`SELECT COUNT(*) FROM creatures WHERE creature_id = ?`), parent).Scan(&n); err != nil {
				return fmt.Errorf("lookup parent %d: %w", parent, err)
			}
			if n == 0 {
				return fmt.Errorf("parent %d: %w", parent, domain.ErrNotFound)
			}
		}
		var conception sql.NullInt64
		if rec.ConceptionCycle != nil {
			conception = sql.NullInt64{Int64: int64(*rec.ConceptionCycle), Valid: true}
		}
		var err error
		id, err = s.insertID(ctx, tx, `INSERT INTO creatures (simulation_id, birth_cycle, sex, parent1_id, parent2_id, breeder_id, produced_by_breeder_id,
			generation, inbreeding_coefficient, lifespan, conception_cycle, is_homed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING creature_id`,
			rec.SimulationID, rec.BirthCycle, string(rec.Sex), nullID(rec.Parent1ID), nullID(rec.Parent2ID), nullID(rec.BreederID),
			nullID(rec.ProducedByID), rec.Generation, rec.Inbreeding, rec.Lifespan, conception, rec.Homed)
		if err != nil {
			return fmt.Errorf("insert creature: %w", err)
		}
		for traitID, g := range rec.Genotypes {
			if _, err := s.exec(ctx, tx, `INSERT INTO creature_genotypes (creature_id, trait_id, genotype) VALUES (?, ?, ?)`, id, traitID, g); err != nil {
				return fmt.Errorf("insert genotype of creature %d trait %d: %w", id, traitID, err)
			}
		}
		return nil
	})
	return id, err
}

// UpdateOwnership sets the current owner of an individual.
func (s *Store) UpdateOwnership(ctx context.Context, individualID, breederID int64) error {
	res, err := s.exec(ctx, s.db, `UPDATE creatures SET breeder_id = ? WHERE creature_id = ?`, nullID(breederID), individualID)
	if err != nil {
		return fmt.Errorf("update owner: %w", err)
	}
	return mustAffect(res, "individual", individualID)
}

// UpdateHomedFlag marks an individual homed.
func (s *Store) UpdateHomedFlag(ctx context.Context, individualID int64) error {
	res, err := s.exec(ctx, s.db, `UPDATE creatures SET is_homed = ? WHERE creature_id = ?`, true, individualID)
	if err != nil {
		return fmt.Errorf("update homed: %w", err)
	}
	return mustAffect(res, "individual", individualID)
}

// MarkDeceased records the cycle an individual aged out.
func (s *Store) MarkDeceased(ctx context.Context, individualID int64, cycle int) error {
	res, err := s.exec(ctx, s.db, `UPDATE creatures SET death_cycle = ? WHERE creature_id = ?`, cycle, individualID)
	if err != nil {
		return fmt.Errorf("mark deceased: %w", err)
	}
	return mustAffect(res, "individual", individualID)
}

// RecordOwnershipTransfer appends to the ownership history.
func (s *Store) RecordOwnershipTransfer(ctx context.Context, t domain.OwnershipTransfer) error {
	if _, err := s.exec(ctx, s.db, `INSERT INTO creature_ownership_history (simulation_id, creature_id, from_breeder_id, to_breeder_id, transfer_generation, reason)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.SimulationID, t.IndividualID, nullID(t.FromBreederID), t.ToBreederID, t.Cycle, t.Reason); err != nil {
		return fmt.Errorf("insert ownership transfer: %w", err)
	}
	return nil
}

// RecordCycleStats stores one cycle record with its per-trait rows.
func (s *Store) RecordCycleStats(ctx context.Context, simulationID int64, st domain.CycleStats) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, `INSERT INTO generation_stats (simulation_id, generation, population_size, eligible_males, eligible_females, births, deaths, homed_out, transfers)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			simulationID, st.Cycle, st.PopulationSize, st.EligibleMales, st.EligibleFemales, st.Births, st.Deaths, st.HomedOut, st.Transfers); err != nil {
			return fmt.Errorf("insert cycle %d stats: %w", st.Cycle, err)
		}
		for traitID, freqs := range st.GenotypeFrequencies {
			for genotype, f := range freqs {
				if _, err := s.exec(ctx, tx, `INSERT INTO generation_genotype_frequencies (simulation_id, generation, trait_id, genotype, frequency) VALUES (?, ?, ?, ?, ?)`,
					simulationID, st.Cycle, traitID, genotype, f); err != nil {
					return fmt.Errorf("insert genotype frequency: %w", err)
				}
			}
		}
		for traitID, het := range st.Heterozygosity {
			alleles, err := json.Marshal(st.AlleleFrequencies[traitID])
			if err != nil {
				return err
			}
			if _, err := s.exec(ctx, tx, `INSERT INTO generation_trait_stats (simulation_id, generation, trait_id, allele_frequencies, heterozygosity, genotype_diversity)
				VALUES (?, ?, ?, ?, ?, ?)`,
				simulationID, st.Cycle, traitID, string(alleles), het, st.GenotypeDiversity[traitID]); err != nil {
				return fmt.Errorf("insert trait stats: %w", err)
			}
		}
		return nil
	})
}

// CountIndividuals returns how many individuals a run has created.
func (s *Store) CountIndividuals(ctx context.Context, simulationID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.Rebind(`SELECT COUNT(*) FROM creatures WHERE simulation_id = ?`), simulationID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count creatures: %w", err)
	}
	return n, nil
}

// ListCycleStats returns a run's cycle records in cycle order.
func (s *Store) ListCycleStats(ctx context.Context, simulationID int64) ([]domain.CycleStats, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`SELECT generation, population_size, eligible_males, eligible_females, births, deaths, homed_out, transfers
		FROM generation_stats WHERE simulation_id = ? ORDER BY generation`), simulationID)
	if err != nil {
		return nil, fmt.Errorf("select cycle stats: %w", err)
	}
	var out []domain.CycleStats
	index := map[int]int{}
	for rows.Next() {
		var st domain.CycleStats
		if err := rows.Scan(&st.Cycle, &st.PopulationSize, &st.EligibleMales, &st.EligibleFemales, &st.Births, &st.Deaths, &st.HomedOut, &st.Transfers); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan cycle stats: %w", err)
		}
		st.GenotypeFrequencies = map[int]map[string]float64{}
		st.AlleleFrequencies = map[int]map[string]float64{}
		st.Heterozygosity = map[int]float64{}
		st.GenotypeDiversity = map[int]int{}
		index[st.Cycle] = len(out)
		out = append(out, st)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycle stats: %w", err)
	}
	if err := s.loadFrequencies(ctx, simulationID, out, index); err != nil {
		return nil, err
	}
	if err := s.loadTraitStats(ctx, simulationID, out, index); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) loadFrequencies(ctx context.Context, simulationID int64, out []domain.CycleStats, index map[int]int) error {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`SELECT generation, trait_id, genotype, frequency FROM generation_genotype_frequencies WHERE simulation_id = ?`), simulationID)
	if err != nil {
		return fmt.Errorf("select genotype frequencies: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			cycle, traitID int
			genotype       string
			f              float64
		)
		if err := rows.Scan(&cycle, &traitID, &genotype, &f); err != nil {
			return fmt.Errorf("scan genotype frequency: %w", err)
		}
		i, ok := index[cycle]
		if !ok {
			continue
		}
		if out[i].GenotypeFrequencies[traitID] == nil {
			out[i].GenotypeFrequencies[traitID] = map[string]float64{}
		}
		out[i].GenotypeFrequencies[traitID][genotype] = f
	}
	return rows.Err()
}

func (s *Store) loadTraitStats(ctx context.Context, simulationID int64, out []domain.CycleStats, index map[int]int) error {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`SELECT generation, trait_id, allele_frequencies, heterozygosity, genotype_diversity FROM generation_trait_stats WHERE simulation_id = ?`), simulationID)
	if err != nil {
		return fmt.Errorf("select trait stats: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			cycle, traitID, diversity int
			alleles                   string
			het                       float64
		)
		if err := rows.Scan(&cycle, &traitID, &alleles, &het, &diversity); err != nil {
			return fmt.Errorf("scan trait stats: %w", err)
		}
		i, ok := index[cycle]
		if !ok {
			continue
		}
		freqs := map[string]float64{}
		if err := json.Unmarshal([]byte(alleles), &freqs); err != nil {
			return fmt.Errorf("decode allele frequencies: %w", err)
		}
		out[i].AlleleFrequencies[traitID] = freqs
		out[i].Heterozygosity[traitID] = het
		out[i].GenotypeDiversity[traitID] = diversity
	}
	return rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
