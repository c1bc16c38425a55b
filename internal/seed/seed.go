// Package seed loads the starter data sets for both domains. Inserts go
// through the entity services rather than the store, so seeding
// exercises the same validation and reference checks as the API;
// re-running against a seeded database skips existing unique names
// instead of failing.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RoyFahel/cloud-project/internal/entity"
	"github.com/RoyFahel/cloud-project/internal/store"
)

// medicaments and the maladies they treat.
var medicamentData = []struct {
	name, description, malady string
}{
	{"Paracetamol", "Pain reliever and fever reducer", "Fever"},
	{"Ibuprofen", "Anti-inflammatory pain reliever", "Inflammation"},
	{"Amoxicillin", "Antibiotic for bacterial infections", "Bacterial infection"},
	{"Aspirin", "Pain reliever, anti-inflammatory", "Headache"},
	{"Omeprazole", "Reduces stomach acid", "Acid reflux"},
	{"Metformin", "Diabetes medication", "Diabetes"},
	{"Lisinopril", "Blood pressure medication", "Hypertension"},
	{"Atorvastatin", "Cholesterol-lowering medication", "High cholesterol"},
}

// products and their categories.
var productData = []struct {
	name, description, category string
}{
	{"Whey Protein", "High-quality protein for muscle growth", "Protein"},
	{"Creatine Monohydrate", "Boosts strength and power", "Performance"},
	{"BCAA", "Supports muscle recovery and reduces fatigue", "Recovery"},
	{"Pre-Workout", "Enhances energy and focus during workouts", "Performance"},
	{"Glutamine", "Aids muscle recovery and immune support", "Recovery"},
	{"Beta-Alanine", "Improves endurance and delays fatigue", "Performance"},
	{"Omega-3 Fish Oil", "Supports joint health and reduces inflammation", "Vitamins"},
	{"Multivitamin", "Provides essential vitamins and minerals", "Vitamins"},
}

// Services indexes the entity services by schema name.
type Services map[string]*entity.Service

// Run seeds both domains and logs what was created and what already
// existed.
func Run(ctx context.Context, services Services, log zerolog.Logger) error {
	if err := seedPharmacy(ctx, services, log); err != nil {
		return err
	}
	return seedCommerce(ctx, services, log)
}

func seedPharmacy(ctx context.Context, services Services, log zerolog.Logger) error {
	maladies := services["malady"]
	medicaments := services["medicament"]
	if maladies == nil || medicaments == nil {
		return fmt.Errorf("malady and medicament services are required for seeding")
	}

	existing, err := existingNames(ctx, medicaments, "medicamentName")
	if err != nil {
		return err
	}

	for _, m := range medicamentData {
		if existing[m.name] {
			log.Debug().Str("medicament", m.name).Msg("already seeded, skipping")
			continue
		}

		maladyID, err := ensureParent(ctx, maladies, "maladyName", m.malady)
		if err != nil {
			return fmt.Errorf("seed malady %q: %w", m.malady, err)
		}

		_, err = medicaments.Create(ctx, store.Document{
			"medicamentName": m.name,
			"description":    m.description,
			"malady_id":      maladyID.String(),
		})
		if err != nil {
			return fmt.Errorf("seed medicament %q: %w", m.name, err)
		}
		log.Info().Str("medicament", m.name).Str("malady", m.malady).Msg("seeded")
	}
	return nil
}

func seedCommerce(ctx context.Context, services Services, log zerolog.Logger) error {
	categories := services["category"]
	products := services["product"]
	if categories == nil || products == nil {
		return fmt.Errorf("category and product services are required for seeding")
	}

	existing, err := existingNames(ctx, products, "productName")
	if err != nil {
		return err
	}

	for _, p := range productData {
		if existing[p.name] {
			log.Debug().Str("product", p.name).Msg("already seeded, skipping")
			continue
		}

		categoryID, err := ensureParent(ctx, categories, "categoryName", p.category)
		if err != nil {
			return fmt.Errorf("seed category %q: %w", p.category, err)
		}

		_, err = products.Create(ctx, store.Document{
			"productName": p.name,
			"description": p.description,
			"category_id": categoryID.String(),
		})
		if err != nil {
			return fmt.Errorf("seed product %q: %w", p.name, err)
		}
		log.Info().Str("product", p.name).Str("category", p.category).Msg("seeded")
	}
	return nil
}

// existingNames collects the live values of a name field so re-runs can
// skip records that are already present.
func existingNames(ctx context.Context, svc *entity.Service, nameField string) (map[string]bool, error) {
	items, _, err := svc.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list existing %s records: %w", svc.Schema().Name, err)
	}
	names := make(map[string]bool, len(items))
	for _, item := range items {
		if name, ok := item[nameField].(string); ok {
			names[name] = true
		}
	}
	return names, nil
}

// ensureParent creates a uniquely-named parent record, or finds the
// existing one when the unique index reports a conflict.
func ensureParent(ctx context.Context, svc *entity.Service, nameField, name string) (uuid.UUID, error) {
	created, err := svc.Create(ctx, store.Document{nameField: name})
	if err == nil {
		return recordID(created)
	}

	var conflict *store.ConflictError
	if !errors.As(err, &conflict) {
		return uuid.Nil, err
	}

	items, _, err := svc.List(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	for _, item := range items {
		if item[nameField] == name {
			return recordID(item)
		}
	}
	return uuid.Nil, fmt.Errorf("%s %q conflicted but was not found", nameField, name)
}

func recordID(item entity.Expanded) (uuid.UUID, error) {
	raw, _ := item["id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse seeded record id %q: %w", raw, err)
	}
	return id, nil
}
