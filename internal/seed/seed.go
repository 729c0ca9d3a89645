package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	authdomain "github.com/smallbiznis/atelier/internal/auth/domain"
	"github.com/smallbiznis/atelier/internal/auth/password"
	catalogdomain "github.com/smallbiznis/atelier/internal/catalog/domain"
	settingsdomain "github.com/smallbiznis/atelier/internal/settings/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "changeme123"
)

type category struct {
	name  string
	emoji string
}

var defaultCategories = []category{
	{"Bijoux de portables", "📱"},
	{"Boucles d'oreilles", "💫"},
	{"Bracelets", "📿"},
	{"Bracelets de cheville", "🦶"},
	{"Colliers", "💎"},
	{"Cordon lunettes", "👓"},
	{"Mala", "🧘"},
	{"Porte clés", "🔑"},
}

var defaultStones = []string{
	"Améthyste", "Quartz rose", "Agate bleue", "Cristal de roche", "Perles d'eau douce",
	"Agate verte", "Aventurine", "Citrine", "Perles dorées", "Turquoise",
	"Howlite", "Jaspe rouge", "Quartz clair", "Œil de tigre", "Obsidienne",
}

var defaultColors = []string{
	"Violet", "Rose", "Bleu", "Blanc", "Vert", "Jaune",
	"Doré", "Rouge", "Marron", "Transparent", "Noir",
}

type sampleProduct struct {
	name        string
	category    string
	stones      []string
	colors      []string
	description string
	price       float64
	stock       int
}

var sampleProducts = []sampleProduct{
	{"Bracelet Sérénité", "Bracelets", []string{"Améthyste", "Quartz rose"}, []string{"Violet", "Rose"},
		"Un bracelet délicat en améthyste et quartz rose pour apaiser l'esprit et ouvrir le cœur à la douceur.", 25, 5},
	{"Collier Aurore", "Colliers", []string{"Agate bleue", "Cristal de roche"}, []string{"Bleu", "Blanc"},
		"Comme les premières lueurs du jour, ce collier en agate bleue apporte clarté et harmonie à votre quotidien.", 35, 3},
	{"Boucles d'oreilles Papillon", "Boucles d'oreilles", []string{"Quartz rose", "Perles d'eau douce"}, []string{"Rose", "Blanc"},
		"Légères comme des papillons, ces boucles en quartz rose célèbrent la transformation et la beauté de l'instant.", 18, 8},
	{"Bracelet Équilibre", "Bracelets", []string{"Agate verte", "Aventurine"}, []string{"Vert"},
		"L'alliance de l'agate verte et de l'aventurine pour retrouver équilibre intérieur et connexion à la nature.", 28, 4},
	{"Collier Lune d'Or", "Colliers", []string{"Citrine", "Perles dorées"}, []string{"Jaune", "Doré"},
		"Inspiré par la lumière lunaire, ce collier en citrine rayonne de chaleur et illumine les cœurs d'optimisme.", 42, 2},
	{"Bracelet de cheville Liberté", "Bracelets de cheville", []string{"Turquoise", "Howlite"}, []string{"Bleu", "Blanc"},
		"Un bracelet de cheville bohème pour célébrer la liberté et l'été avec légèreté.", 22, 6},
	{"Cordon lunettes Bohème", "Cordon lunettes", []string{"Agate verte", "Jaspe rouge"}, []string{"Vert", "Rouge", "Marron"},
		"Une chaîne pratique et élégante en pierres naturelles, pour garder vos lunettes toujours à portée de main avec style.", 22, 6},
	{"Mala Méditation", "Mala", []string{"Améthyste", "Quartz clair"}, []string{"Violet", "Transparent"},
		"Un mala traditionnel de 108 perles pour accompagner vos méditations et intentions.", 55, 3},
	{"Porte-clés Protection", "Porte clés", []string{"Œil de tigre", "Obsidienne"}, []string{"Marron", "Noir", "Doré"},
		"Un porte-clés protecteur avec œil de tigre pour vous accompagner au quotidien.", 12, 10},
	{"Bijou de portable Harmonie", "Bijoux de portables", []string{"Quartz rose", "Améthyste"}, []string{"Rose", "Violet"},
		"Un bijou de téléphone délicat pour apporter douceur et harmonie à votre quotidien numérique.", 15, 8},
}

// Options controls what Run inserts besides reference data.
type Options struct {
	AdminUsername string
	AdminPassword string
	SampleData    bool
	Now           time.Time
}

// Report counts the rows Run created.
type Report struct {
	AdminCreated bool
	Products     int
}

// Run seeds reference data, the default theme and the default admin. Every
// insert skips rows that already exist, so Run is safe on each start.
func Run(ctx context.Context, db *gorm.DB, node *snowflake.Node, opts Options) (Report, error) {
	if db == nil {
		return Report{}, errors.New("seed database handle is required")
	}
	if node == nil {
		return Report{}, errors.New("seed id generator is required")
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	username := strings.TrimSpace(opts.AdminUsername)
	if username == "" {
		username = DefaultAdminUsername
	}
	adminPassword := opts.AdminPassword
	if adminPassword == "" {
		adminPassword = DefaultAdminPassword
	}

	var report Report
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCategories(ctx, tx, node, opts.Now); err != nil {
			return err
		}
		if err := ensureTags(ctx, tx, node, "stones", defaultStones, opts.Now); err != nil {
			return err
		}
		if err := ensureTags(ctx, tx, node, "colors", defaultColors, opts.Now); err != nil {
			return err
		}
		if err := ensureTheme(ctx, tx, opts.Now); err != nil {
			return err
		}

		created, err := ensureAdmin(ctx, tx, node, username, adminPassword, opts.Now)
		if err != nil {
			return err
		}
		report.AdminCreated = created

		if opts.SampleData {
			n, err := ensureSampleProducts(ctx, tx, node, opts.Now)
			if err != nil {
				return err
			}
			report.Products = n
		}
		return nil
	})
	return report, err
}

func ensureCategories(ctx context.Context, tx *gorm.DB, node *snowflake.Node, now time.Time) error {
	for _, c := range defaultCategories {
		row := settingsdomain.Category{
			ID:        node.Generate().Int64(),
			Name:      c.name,
			Slug:      slug.Make(c.name),
			Emoji:     c.emoji,
			CreatedAt: now,
		}
		if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureTags(ctx context.Context, tx *gorm.DB, node *snowflake.Node, table string, names []string, now time.Time) error {
	for _, name := range names {
		row := settingsdomain.Tag{ID: node.Generate().Int64(), Name: name, CreatedAt: now}
		if err := tx.WithContext(ctx).Table(table).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureTheme(ctx context.Context, tx *gorm.DB, now time.Time) error {
	row := settingsdomain.Setting{Key: settingsdomain.ThemeSettingKey, Value: settingsdomain.ThemeAuto, UpdatedAt: now}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func ensureAdmin(ctx context.Context, tx *gorm.DB, node *snowflake.Node, username, plain string, now time.Time) (bool, error) {
	var admin authdomain.Admin
	err := tx.WithContext(ctx).Where("username = ?", username).First(&admin).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	hashed, err := password.Hash(plain)
	if err != nil {
		return false, err
	}
	admin = authdomain.Admin{
		ID:           node.Generate().Int64(),
		Username:     username,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(&admin).Error; err != nil {
		return false, err
	}
	return true, nil
}

// ensureSampleProducts only fills an empty catalog.
func ensureSampleProducts(ctx context.Context, tx *gorm.DB, node *snowflake.Node, now time.Time) (int, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(&catalogdomain.Product{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	stones, err := tagIDs(ctx, tx, "stones")
	if err != nil {
		return 0, err
	}
	colors, err := tagIDs(ctx, tx, "colors")
	if err != nil {
		return 0, err
	}

	for i, p := range sampleProducts {
		description := p.description
		// Distinct timestamps keep the newest-first listing in declaration order.
		created := now.Add(-time.Duration(i) * time.Second)
		product := catalogdomain.Product{
			ID:          node.Generate().Int64(),
			Name:        p.name,
			Category:    p.category,
			Description: &description,
			Price:       p.price,
			Stock:       p.stock,
			CreatedAt:   created,
			UpdatedAt:   created,
		}
		if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
			return 0, err
		}
		for _, name := range p.stones {
			if err := tx.WithContext(ctx).Exec(
				`INSERT INTO product_stones (product_id, stone_id) VALUES (?, ?)`, product.ID, stones[name],
			).Error; err != nil {
				return 0, err
			}
		}
		for _, name := range p.colors {
			if err := tx.WithContext(ctx).Exec(
				`INSERT INTO product_colors (product_id, color_id) VALUES (?, ?)`, product.ID, colors[name],
			).Error; err != nil {
				return 0, err
			}
		}
	}
	return len(sampleProducts), nil
}

func tagIDs(ctx context.Context, tx *gorm.DB, table string) (map[string]int64, error) {
	var rows []settingsdomain.Tag
	if err := tx.WithContext(ctx).Table(table).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Name] = r.ID
	}
	return out, nil
}
