// Package domain contains the core entity types shared across services,
// repositories, and handlers.
//
// Types here are plain data structures with minimal behavior. Business
// rules live in service packages; persistence lives in repository/postgres.
// Every tenant-scoped entity carries an OrganizationID which repositories
// use as a mandatory query filter.
package domain
