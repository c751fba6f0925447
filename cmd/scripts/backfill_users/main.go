// Command backfill_users fills the local user replica with ids that were
// created before this service subscribed to user events. Ids are read from the
// arguments or, when none are given, one per line from stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mni-microservices/project-service/internal/config"
	"github.com/mni-microservices/project-service/internal/models"
	"github.com/mni-microservices/project-service/internal/repository"
	"github.com/mni-microservices/project-service/internal/utils"
	"gorm.io/gorm/logger"
)

func main() {
	tokenRole := flag.String("token", "", "also print a bearer token for the first id with this global role (ADMIN or USER)")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := models.Open(&cfg.Database, logger.Warn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ids, err := readIDs(flag.Args())
	if err != nil {
		log.Fatalf("Invalid input: %v", err)
	}

	users := repository.NewUserRepository(db)
	ctx := context.Background()
	added := 0
	for _, id := range ids {
		exists, err := users.ExistsByID(ctx, id)
		if err != nil {
			log.Fatalf("Failed to query user %s: %v", id, err)
		}
		if exists {
			fmt.Printf("%-36s already present\n", id)
			continue
		}
		if err := users.Save(ctx, id); err != nil {
			log.Fatalf("Failed to save user %s: %v", id, err)
		}
		fmt.Printf("%-36s added\n", id)
		added++
	}
	fmt.Printf("\n%d of %d users added\n", added, len(ids))

	if *tokenRole != "" && len(ids) > 0 {
		utils.SetJWTSecret(cfg.JWT.Secret)
		token, err := utils.GenerateToken(ids[0], "backfill", strings.ToUpper(*tokenRole), cfg.JWT.ExpireHour)
		if err != nil {
			log.Fatalf("Failed to sign token: %v", err)
		}
		fmt.Printf("\nBearer token for %s:\n%s\n", ids[0], token)
	}
}

func readIDs(args []string) ([]uuid.UUID, error) {
	if len(args) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				args = append(args, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("%q is not a uuid", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
