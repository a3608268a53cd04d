package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestCatalog creates a catalog of the given kind in t.TempDir(), applies
// its schema and registers cleanup. It returns the file path, for opening
// read pools, and the write pool used to insert fixtures.
func OpenTestCatalog(t *testing.T, kind string) (path string, writeDB *sql.DB) {
	t.Helper()

	path = filepath.Join(t.TempDir(), kind+".db")

	writeDB, err := OpenSQLite(path, ModeWrite, 0)
	if err != nil {
		t.Fatalf("open test catalog: %v", err)
	}
	t.Cleanup(func() { _ = writeDB.Close() })

	if err := RunMigrations(writeDB, kind); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return path, writeDB
}

// SciaRecord describes a Sciamachy catalog row for InsertSciaRecord. Zero
// Orbit, ProcStage and Received take the schema or level defaults.
type SciaRecord struct {
	Name       string
	Dir        string // directory part stored in the path column
	Compressed bool
	Start      string
	Received   string
	Orbit      int
	ProcStage  string
	QFlag      int // level 0 only
}

// InsertSciaProduct registers a Sciamachy product in meta__<level>P.
// dir is the directory part stored in the path column.
func InsertSciaProduct(t *testing.T, db *sql.DB, level, name, dir string, compressed bool, start string) {
	t.Helper()
	InsertSciaRecord(t, db, level, SciaRecord{Name: name, Dir: dir, Compressed: compressed, Start: start})
}

// InsertSciaRecord registers a Sciamachy product in meta__<level>P.
func InsertSciaRecord(t *testing.T, db *sql.DB, level string, r SciaRecord) {
	t.Helper()

	if r.Orbit == 0 {
		r.Orbit = 1
	}
	if r.Received == "" {
		r.Received = "0000-00-00 00:00:00"
	}

	var stmt string
	args := []any{r.Name, r.Dir, r.Compressed}
	switch level {
	case "0":
		if r.ProcStage == "" {
			r.ProcStage = "N"
		}
		stmt = `INSERT INTO meta__0P (name, path, compression, procStage, procCenter, softVersion,
			dateTimeStart, receiveDate, muSeconds, duration, absOrbit, relOrbit, numDataSets, fileSize, q_flag)
			VALUES (?, ?, ?, ?, 'PDHS-K', '6.03', ?, ?, 0, 6000, ?, 1, 1, 1, ?)`
		args = append(args, r.ProcStage, r.Start, r.Received, r.Orbit, r.QFlag)
	case "1":
		if r.ProcStage == "" {
			r.ProcStage = "W"
		}
		stmt = `INSERT INTO meta__1P (name, path, compression, procStage, procCenter, softVersion,
			keydataVersion, mFactorVersion, spectralCal, saturatedPix, deadPixels,
			dateTimeStart, receiveDate, muSeconds, duration, absOrbit, relOrbit, numDataSets,
			nadirStates, limbStates, occulStates, monitorStates, noProcStates, fileSize)
			VALUES (?, ?, ?, ?, 'DPA', '8.02', '', '', 'GOOD', 'GOOD', 'GOOD',
			?, ?, 0, 6000, ?, 1, 1, 0, 0, 0, 0, 0, 1)`
		args = append(args, r.ProcStage, r.Start, r.Received, r.Orbit)
	default:
		if r.ProcStage == "" {
			r.ProcStage = "U"
		}
		stmt = `INSERT INTO meta__2P (name, path, compression, procStage, procCenter, softVersion,
			dateTimeStart, receiveDate, muSeconds, duration, absOrbit, relOrbit, numDataSets,
			nadirProducts, limbProducts, fileSize)
			VALUES (?, ?, ?, ?, 'DPA', '6.01', ?, ?, 0, 6000, ?, 1, 1, '', '', 1)`
		args = append(args, r.ProcStage, r.Start, r.Received, r.Orbit)
	}

	if _, err := db.Exec(stmt, args...); err != nil {
		t.Fatalf("insert scia product %s: %v", r.Name, err)
	}
}

// InsertGosatRoot registers a root path and returns its pathID.
func InsertGosatRoot(t *testing.T, db *sql.DB, host, localPath, nfsPath string) int64 {
	t.Helper()

	res, err := db.Exec(`INSERT INTO rootPaths (hostName, localPath, nfsPath) VALUES (?, ?, ?)`, host, localPath, nfsPath)
	if err != nil {
		t.Fatalf("insert root path: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("root path id: %v", err)
	}
	return id
}

// InsertGosatCAI registers a CAI level-2 product.
func InsertGosatCAI(t *testing.T, db *sql.DB, pathID int64, name, start string) {
	t.Helper()
	InsertGosatCAIReceived(t, db, pathID, name, start, "0000-00-00 00:00:00")
}

// InsertGosatCAIReceived registers a CAI level-2 product with a receiveDate.
func InsertGosatCAIReceived(t *testing.T, db *sql.DB, pathID int64, name, start, received string) {
	t.Helper()

	_, err := db.Exec(`INSERT INTO tcai__2P (name, pathID, passNumber, frameNumber, productCode,
		productVersion, dateTimeStart, receiveDate, missingPixelRate, numLine, numPixel, fileSize)
		VALUES (?, ?, 1, 1, 'L2CL', '010010', ?, ?, 0, 1, 1, 1)`, name, pathID, start, received)
	if err != nil {
		t.Fatalf("insert cai product %s: %v", name, err)
	}
}

// InsertGosatFTS registers an FTS level-1 product.
func InsertGosatFTS(t *testing.T, db *sql.DB, pathID int64, name, obsMode, prodVersion, start string) {
	t.Helper()

	_, err := db.Exec(`INSERT INTO tfts__1P (name, pathID, passNumber, frameNumber, productVersion,
		algorithmName, algorithmVersion, paramVersion, observationMode, dateTimeStart, numPoints, fileSize)
		VALUES (?, ?, 1, 1, ?, 'L1BProc', '160', '160', ?, ?, 1, 1)`, name, pathID, prodVersion, obsMode, start)
	if err != nil {
		t.Fatalf("insert fts product %s: %v", name, err)
	}
}
