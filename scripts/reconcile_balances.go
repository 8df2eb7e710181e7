package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Audits every user's balance against the append-only ledgers. A user's
// balance must equal the sum of their claims plus the referral bonuses
// they received on both sides of the link.
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable",
			os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_HOST"), os.Getenv("DB_PORT"), os.Getenv("DB_NAME"))
	}

	// Connect to database
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	fmt.Println("✅ Connected to database")

	rows, err := db.Query(`
		SELECT u.uid,
		       u.balance,
		       COALESCE(c.total, 0)  AS claimed,
		       COALESCE(rr.total, 0) AS referee_bonus,
		       COALESCE(re.total, 0) AS referrer_bonus
		FROM users u
		LEFT JOIN (
			SELECT user_uid, SUM(amount) AS total
			FROM claims GROUP BY user_uid
		) c ON c.user_uid = u.uid
		LEFT JOIN (
			SELECT referred_uid, SUM(referee_bonus_amount) AS total
			FROM referrals GROUP BY referred_uid
		) rr ON rr.referred_uid = u.uid
		LEFT JOIN (
			SELECT referrer_uid, SUM(bonus_amount) AS total
			FROM referrals GROUP BY referrer_uid
		) re ON re.referrer_uid = u.uid
		ORDER BY u.uid
	`)
	if err != nil {
		log.Fatal("Failed to query balances:", err)
	}
	defer rows.Close()

	checked := 0
	mismatched := 0

	for rows.Next() {
		var uid string
		var balance, claimed, refereeBonus, referrerBonus int64

		if err := rows.Scan(&uid, &balance, &claimed, &refereeBonus, &referrerBonus); err != nil {
			log.Fatal("Failed to scan row:", err)
		}

		expected := claimed + refereeBonus + referrerBonus
		checked++

		if balance != expected {
			mismatched++
			fmt.Printf("⚠️  %s: balance=%d expected=%d (claims=%d referee=%d referrer=%d)\n",
				uid, balance, expected, claimed, refereeBonus, referrerBonus)
		}
	}
	if err := rows.Err(); err != nil {
		log.Fatal("Row iteration error:", err)
	}

	fmt.Printf("Checked %d users, %d mismatched\n", checked, mismatched)
	if mismatched > 0 {
		os.Exit(1)
	}
	fmt.Println("✅ All balances reconcile")
}
