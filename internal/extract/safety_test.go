package extract

import "testing"

func TestIsSafeAcceptsReadOnlyQueries(t *testing.T) {
	cases := []string{
		"SELECT * FROM orders",
		"select id, name from customers where id = 1",
		"WITH top AS (SELECT 1) SELECT * FROM top",
		"  \n SELECT 1",
	}
	for _, candidate := range cases {
		if !IsSafe(candidate) {
			t.Fatalf("IsSafe(%q) = false, want true", candidate)
		}
	}
}

func TestIsSafeRejectsMutationKeywords(t *testing.T) {
	cases := []string{
		"DROP TABLE x",
		"SELECT * FROM t; DROP TABLE t",
		"select * from t where 1=1; delete from t",
		"INSERT INTO t VALUES (1)",
		"UPDATE t SET a = 1",
		"TRUNCATE t",
		"ALTER TABLE t ADD c int",
		"CREATE TABLE t (a int)",
		"EXEC sp_who",
		"SELECT * FROM orders ORDER BY created_at", // coarse gate: CREATE substring
	}
	for _, candidate := range cases {
		if IsSafe(candidate) {
			t.Fatalf("IsSafe(%q) = true, want false", candidate)
		}
	}
}

func TestIsSafeRejectsNonQueryPrefix(t *testing.T) {
	cases := []string{
		"",
		"SHOW TABLES",
		"EXPLAIN SELECT 1",
		"just some prose",
	}
	for _, candidate := range cases {
		if IsSafe(candidate) {
			t.Fatalf("IsSafe(%q) = true, want false", candidate)
		}
	}
}
