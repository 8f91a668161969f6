package dl1

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx"
)

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

type TelescopeLayoutEntry struct {
	TelID     int     `db:"TelID"`
	Name      string  `db:"Name"`
	Type      string  `db:"Type"`
	Camera    string  `db:"Camera"`
	NumPixels int     `db:"NumPixels"`
	PosX      float64 `db:"PosX"`
	PosY      float64 `db:"PosY"`
	PosZ      float64 `db:"PosZ"`
}

// SubarrayFromDB reads the telescope layout valid for the given observation
// from the observatory database.
func SubarrayFromDB(db *sqlx.DB, obsID int32) (*SubarrayDescription, error) {
	query := "SELECT TelID, Name, Type, Camera, NumPixels, PosX, PosY, PosZ FROM TelescopeLayout WHERE MinObs <= %d and MaxObs >= %d ORDER BY TelID"
	query = fmt.Sprintf(query, obsID, obsID)

	if configuration.Verbosity > 0 {
		logger.Info("Telescope layout read from DB", "database")
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s", query)
		logger.Info(message, "database")
	}

	rows, err := db.Queryx(query)
	if err != nil {
		errMessage := fmt.Errorf("error querying database: %w", err)
		return nil, errMessage
	}

	subarray := &SubarrayDescription{
		Name: subarrayName,
		Tels: make(map[uint16]TelescopeDescription),
	}
	for rows.Next() {
		result := TelescopeLayoutEntry{}
		err := rows.StructScan(&result)
		if err != nil {
			errMessage := fmt.Errorf("error scanning DB row: %w", err)
			return nil, errMessage
		}
		subarray.Tels[uint16(result.TelID)] = TelescopeDescription{
			ID:        uint16(result.TelID),
			Name:      result.Name,
			Type:      result.Type,
			Camera:    result.Camera,
			NumPixels: result.NumPixels,
			Pos:       [3]float64{result.PosX, result.PosY, result.PosZ},
		}
	}
	return subarray, nil
}
