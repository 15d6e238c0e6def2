package user

import (
	"database/sql"

	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `"userId", email, password, "firstName", "lastName", phone, "dateOfBirth", "medicalCardId", "orderIds", "createdAt", "updatedAt"`

func (r *PostgresRepository) GetByID(id int) (User, error) {
	row := r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE "userId" = $1`, id)
	return scanUser(row)
}

func (r *PostgresRepository) GetByEmail(email string) (User, error) {
	row := r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *PostgresRepository) Create(u User) (User, error) {
	err := r.db.QueryRow(`INSERT INTO users (email, password, "firstName", "lastName", phone, "dateOfBirth", "medicalCardId", "orderIds", "createdAt", "updatedAt")
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING "userId"`,
		u.Email, u.Password, u.FirstName, u.LastName, u.Phone, u.DateOfBirth, u.MedicalCardID,
		pq.Array(u.OrderIDs), u.CreatedAt, u.UpdatedAt).Scan(&u.ID)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (r *PostgresRepository) Update(id int, u User) (User, error) {
	res, err := r.db.Exec(`UPDATE users SET email=$1, "firstName"=$2, "lastName"=$3, phone=$4, "dateOfBirth"=$5, "medicalCardId"=$6, "updatedAt"=$7 WHERE "userId" = $8`,
		u.Email, u.FirstName, u.LastName, u.Phone, u.DateOfBirth, u.MedicalCardID, u.UpdatedAt, id)
	if err != nil {
		return User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return User{}, ErrNotFound
	}
	return r.GetByID(id)
}

func (r *PostgresRepository) AppendOrderID(userID, orderID int) (User, error) {
	res, err := r.db.Exec(`UPDATE users SET "orderIds" = array_append(coalesce("orderIds", ARRAY[]::integer[]), $1) WHERE "userId" = $2`,
		orderID, userID)
	if err != nil {
		return User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return User{}, ErrNotFound
	}
	return r.GetByID(userID)
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	var orderIDs pq.Int64Array
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName, &u.Phone,
		&u.DateOfBirth, &u.MedicalCardID, &orderIDs, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	for _, id := range orderIDs {
		u.OrderIDs = append(u.OrderIDs, int(id))
	}
	return u, nil
}
