package postgres

// Migrations returns the built-in schema steps in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_users", UpSQL: migration001Up},
		{Version: 2, Name: "create_classes", UpSQL: migration002Up},
		{Version: 3, Name: "create_student_forms", UpSQL: migration003Up},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: USERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    user_firstname VARCHAR(100) NOT NULL,
    user_lastname VARCHAR(100) NOT NULL,
    -- 0 = student, 1 = teacher
    user_type SMALLINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_user_type CHECK (user_type IN (0, 1))
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CLASSES AND MEMBERSHIP
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS teacher_group (
    id BIGSERIAL PRIMARY KEY,
    teacher_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    group_code VARCHAR(32) NOT NULL UNIQUE,
    total_students INTEGER NOT NULL,
    min_students_per_group INTEGER NOT NULL,
    max_students_per_group INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total CHECK (total_students > 0),
    CONSTRAINT valid_bounds CHECK (min_students_per_group >= 1
        AND min_students_per_group <= max_students_per_group)
);

CREATE TABLE IF NOT EXISTS student_group (
    student_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    group_code VARCHAR(32) NOT NULL REFERENCES teacher_group(group_code) ON DELETE CASCADE,
    group_number INTEGER,
    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (student_id, group_code),
    CONSTRAINT valid_group_number CHECK (group_number IS NULL OR group_number >= 1)
);

CREATE INDEX IF NOT EXISTS idx_student_group_code ON student_group(group_code);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: STUDENT FORMS
// Columns hold JSON text as submitted by the form service.
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS student_form (
    student_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    email VARCHAR(255),
    skills TEXT NOT NULL DEFAULT '[]',
    interests TEXT NOT NULL DEFAULT '[]',
    availability TEXT NOT NULL DEFAULT '{}',
    hours_per_week TEXT NOT NULL DEFAULT '""',
    submitted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`
